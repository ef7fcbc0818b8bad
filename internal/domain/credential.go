package domain

// OSFamily identifies the guest operating system family of a scan target
type OSFamily string

const (
	OSFamilyLinux   OSFamily = "linux"
	OSFamilyWindows OSFamily = "windows"
)

// Credential is one OS-level login to try against a scan target.
// Credentials are attempted in list order until one succeeds.
type Credential struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"-" yaml:"password"`
	// Port overrides the transport default (22 for SSH, 5985 for WinRM)
	Port int `json:"port,omitempty" yaml:"port"`
	// PrivateKey holds PEM-encoded key material for SSH key auth.
	// When set, password auth is not attempted.
	PrivateKey string `json:"-" yaml:"private_key"`
	// Passphrase decrypts PrivateKey if it is encrypted
	Passphrase string `json:"-" yaml:"passphrase"`
	// UseSudo elevates Linux probe commands when the user is not root
	UseSudo bool `json:"use_sudo,omitempty" yaml:"use_sudo"`
}

// TransportPort returns the port to connect to, falling back to the
// given transport default when no override is set
func (c Credential) TransportPort(def int) int {
	if c.Port > 0 {
		return c.Port
	}
	return def
}

// DatabaseCredential is a direct-connect login for the deep database
// prober. Engine may be DatabaseEngineAuto, in which case every known
// engine default port is tried.
type DatabaseCredential struct {
	Engine   DatabaseEngine `json:"engine" yaml:"engine"`
	Username string         `json:"username" yaml:"username"`
	Password string         `json:"-" yaml:"password"`
	// Port overrides the engine default port
	Port int `json:"port,omitempty" yaml:"port"`
	// Host overrides the scanned VM address
	Host string `json:"host,omitempty" yaml:"host"`
}

// EffectiveEngine normalizes an empty engine tag to auto
func (c DatabaseCredential) EffectiveEngine() DatabaseEngine {
	if c.Engine == "" {
		return DatabaseEngineAuto
	}
	return c.Engine
}

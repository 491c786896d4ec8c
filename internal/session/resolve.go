package session

import "github.com/matheus3301/wprelay/internal/config"

const DefaultSessionName = "main"

// Resolve determines the active session name using precedence:
// 1. flagOverride (--session flag)
// 2. WPRELAY_SESSION or config.toml default_session
// 3. "main"
//
// The chosen name is validated.
func Resolve(flagOverride string) (string, error) {
	name := flagOverride
	if name == "" {
		name = DefaultSessionName
		cfg, err := config.LoadEffective(ConfigPath())
		if err == nil && cfg.DefaultSession != "" {
			name = cfg.DefaultSession
		}
	}
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

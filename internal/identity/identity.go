// Package identity manages the tenant identifier that scopes every CV chunk
// and reasoning request. The id is a random UUID minted on first run and
// persisted under the user's home directory; it carries no account semantics
// and is passed explicitly to everything that needs it.
package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
)

const (
	appDir       = ".autofill-agent"
	identityFile = "identity"
)

// DefaultPath is where the identity file lives unless overridden.
func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, appDir, identityFile), nil
}

// Load returns the persisted tenant id, minting and persisting a fresh one
// when the file is missing. A file that does not parse as a UUID is replaced
// rather than propagated; a corrupt id would silently orphan the tenant's
// indexed CV either way, so a clean break is the lesser evil.
func Load(path string, logger *zap.Logger) (string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(raw))
		if parsed, parseErr := uuid.Parse(id); parseErr == nil {
			return parsed.String(), nil
		}
		logger.Warn("Identity file is corrupt, minting a new id", zap.String("path", path))
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read identity file: %w", err)
	}

	id := uuid.New().String()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("failed to create identity directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("failed to persist identity: %w", err)
	}
	logger.Info("Minted new tenant identity", zap.String("path", path))
	return id, nil
}

package toolstack

import (
	"embed"
	"path"

	"github.com/platformsh/platform-cli/internal/errors"
)

//go:embed resources
var resources embed.FS

// resource returns an embedded template such as "drupal/settings.php".
func resource(name string) ([]byte, error) {
	data, err := resources.ReadFile(path.Join("resources", name))
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrInstall,
			"Missing built-in template "+name,
			"This is a bug; please report it.")
	}
	return data, nil
}

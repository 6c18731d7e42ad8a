package scenario

import (
	"os"

	"github.com/aukilabs/broadphase/models"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"gopkg.in/yaml.v3"
)

// FixedEntity is an entity listed in an entities file.
type FixedEntity struct {
	models.Body `yaml:",inline"`

	Static bool `yaml:"static"`
}

// LoadEntities reads the list of fixed entities at the given path.
func LoadEntities(path string) ([]FixedEntity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("reading entities failed").
			WithType(ErrTypeRead).
			WithTag("path", path).
			Wrap(err)
	}

	var entities []FixedEntity
	if err := yaml.Unmarshal(data, &entities); err != nil {
		return nil, errors.New("parsing entities failed").
			WithType(ErrTypeParse).
			WithTag("path", path).
			Wrap(err)
	}
	return entities, nil
}

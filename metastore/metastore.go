package metastore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danthegoodman1/directdict/dictionary"
	"github.com/danthegoodman1/directdict/gologger"
	"github.com/danthegoodman1/directdict/s3_helper"
	"github.com/danthegoodman1/directdict/utils"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var (
	logger = gologger.NewLogger()

	ErrDefinitionNotFound = utils.PermError("dictionary definition not found")

	validate = validator.New()
)

type (
	MetaStore interface {
		// GetDefinition fetches a definition by its full name (database.name)
		GetDefinition(ctx context.Context, fullName string) (Definition, error)

		ListDefinitions(ctx context.Context) ([]Definition, error)

		// PutDefinition creates or replaces a definition, returning it with ID and timestamps set
		PutDefinition(ctx context.Context, def Definition) (Definition, error)

		DeleteDefinition(ctx context.Context, fullName string) error

		Shutdown(ctx context.Context) error
	}

	// Definition is a registered dictionary: its structure and where its rows come from.
	Definition struct {
		ID        string               `json:"id,omitempty" yaml:"id,omitempty"`
		Name      string               `json:"name" yaml:"name" validate:"required"`
		Database  string               `json:"database,omitempty" yaml:"database,omitempty"`
		Layout    string               `json:"layout" yaml:"layout" validate:"required,eq=direct"`
		Structure dictionary.Structure `json:"structure" yaml:"structure"`
		Lifetime  *dictionary.Lifetime `json:"lifetime,omitempty" yaml:"lifetime,omitempty"`
		Source    SourceDefinition     `json:"source" yaml:"source"`

		CreatedAt time.Time `json:"created_at,omitempty" yaml:"-"`
		UpdatedAt time.Time `json:"updated_at,omitempty" yaml:"-"`
	}

	SourceDefinition struct {
		Type   string         `json:"type" yaml:"type" validate:"required"`
		Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	}

	definitionFile struct {
		Dictionaries []Definition `yaml:"dictionaries"`
	}
)

func (d Definition) Config() dictionary.Config {
	return dictionary.Config{
		Database:  d.Database,
		Name:      d.Name,
		Structure: d.Structure,
		Lifetime:  d.Lifetime,
	}
}

func (d Definition) FullName() string {
	return d.Config().FullName()
}

// Validate checks the definition fields, then the dictionary configuration itself.
func (d Definition) Validate() error {
	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: invalid definition '%s': field %s failed '%s'", dictionary.ErrConfiguration, d.FullName(), verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("error in validate.Struct: %w", err)
	}
	return d.Config().Validate()
}

// ParseDefinitions parses a YAML document holding a top level `dictionaries` list. A name
// of the form database.name fills an empty database.
func ParseDefinitions(raw []byte) ([]Definition, error) {
	var f definitionFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("error in yaml.Unmarshal: %w", err)
	}
	for i := range f.Dictionaries {
		if f.Dictionaries[i].Database == "" {
			f.Dictionaries[i].Database, f.Dictionaries[i].Name = splitFullName(f.Dictionaries[i].Name)
		}
		if f.Dictionaries[i].Layout == "" {
			f.Dictionaries[i].Layout = dictionary.LayoutDirect
		}
		if err := f.Dictionaries[i].Validate(); err != nil {
			return nil, err
		}
	}
	return f.Dictionaries, nil
}

// LoadDefinitionFiles reads definition files from local paths or s3://bucket/key URLs.
func LoadDefinitionFiles(ctx context.Context, paths []string) ([]Definition, error) {
	logger := zerolog.Ctx(ctx)
	var defs []Definition
	for _, p := range paths {
		var raw []byte
		var err error
		if bucket, key, ok := s3_helper.ParseS3URL(p); ok {
			raw, err = s3_helper.ReadObject(ctx, bucket, key)
		} else {
			raw, err = os.ReadFile(p)
		}
		if err != nil {
			return nil, fmt.Errorf("error reading definition file '%s': %w", p, err)
		}
		fileDefs, err := ParseDefinitions(raw)
		if err != nil {
			return nil, fmt.Errorf("error parsing definition file '%s': %w", p, err)
		}
		logger.Debug().Str("path", p).Int("dictionaries", len(fileDefs)).Msg("loaded definition file")
		defs = append(defs, fileDefs...)
	}
	return defs, nil
}

func splitFullName(fullName string) (database, name string) {
	if i := strings.LastIndex(fullName, "."); i >= 0 {
		return fullName[:i], fullName[i+1:]
	}
	return "", fullName
}

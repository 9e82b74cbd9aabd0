package schema

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"crudapi/internal/naming"
)

type yamlFile struct {
	Entities []yamlEntity `yaml:"entities"`
}

type yamlEntity struct {
	Name      string         `yaml:"name"`
	Table     string         `yaml:"table"`
	Fields    []yamlField    `yaml:"fields"`
	Relations []yamlRelation `yaml:"relations"`
}

type yamlField struct {
	Name     string `yaml:"name"`
	Column   string `yaml:"column"`
	Type     string `yaml:"type"`
	Primary  bool   `yaml:"primary"`
	Unique   bool   `yaml:"unique"`
	Nullable bool   `yaml:"nullable"`
}

type yamlRelation struct {
	Name        string `yaml:"name"`
	Entity      string `yaml:"entity"`
	Cardinality string `yaml:"cardinality"`
	ForeignKey  string `yaml:"foreign_key"`
	References  string `yaml:"references"`
}

// Load reads the entity declarations from a YAML schema file and builds
// the registry. Missing tables default to the pluralized snake_case
// entity name; every singular relation gets a derived reverse list
// relation on its target unless the target already declares one.
func Load(path string, namer *naming.Namer) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	return Parse(data, namer)
}

// Parse builds a registry from raw YAML schema declarations.
func Parse(data []byte, namer *naming.Namer) (*Registry, error) {
	var yf yamlFile
	if err := yaml.Unmarshal(data, &yf); err != nil {
		return nil, fmt.Errorf("unmarshalling schema YAML: %w", err)
	}
	if len(yf.Entities) == 0 {
		return nil, fmt.Errorf("schema declares no entities")
	}
	if namer == nil {
		namer = naming.NewNamer(naming.Config{})
	}

	entities := make([]*Entity, 0, len(yf.Entities))
	byName := make(map[string]*Entity, len(yf.Entities))
	for _, ye := range yf.Entities {
		entity, err := buildEntity(ye, namer)
		if err != nil {
			return nil, err
		}
		if _, dup := byName[entity.Name]; dup {
			return nil, fmt.Errorf("duplicate entity %q", entity.Name)
		}
		entities = append(entities, entity)
		byName[entity.Name] = entity
	}

	deriveReverseRelations(entities, byName, namer)

	return NewRegistry(entities)
}

func buildEntity(ye yamlEntity, namer *naming.Namer) (*Entity, error) {
	if ye.Name == "" {
		return nil, fmt.Errorf("entity with empty name")
	}
	entity := &Entity{
		Name:  ye.Name,
		Table: ye.Table,
	}
	if entity.Table == "" {
		entity.Table = namer.Collection(ye.Name)
	}

	hasIdentity := false
	for _, yf := range ye.Fields {
		if strings.TrimSpace(yf.Name) == "" {
			return nil, fmt.Errorf("entity %q: field with empty name", ye.Name)
		}
		if yf.Name == IdentityField {
			hasIdentity = true
		}
		entity.Fields = append(entity.Fields, Field{
			Name:     yf.Name,
			Column:   yf.Column,
			Type:     yf.Type,
			Primary:  yf.Primary || yf.Name == IdentityField,
			Unique:   yf.Unique,
			Nullable: yf.Nullable,
		})
	}
	if !hasIdentity {
		// Every entity is addressable by id; prepend the conventional one.
		entity.Fields = append([]Field{{Name: IdentityField, Type: "varchar(36)", Primary: true}}, entity.Fields...)
	}

	for _, yrel := range ye.Relations {
		if yrel.Name == "" || yrel.Entity == "" {
			return nil, fmt.Errorf("entity %q: relation needs both name and entity", ye.Name)
		}
		cardinality, err := parseCardinality(yrel.Cardinality)
		if err != nil {
			return nil, fmt.Errorf("entity %q: relation %q: %w", ye.Name, yrel.Name, err)
		}
		entity.Relations = append(entity.Relations, Relation{
			Name:        yrel.Name,
			Entity:      yrel.Entity,
			Cardinality: cardinality,
			ForeignKey:  yrel.ForeignKey,
			References:  yrel.References,
		})
	}
	return entity, nil
}

func parseCardinality(value string) (Cardinality, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "singular", "one":
		return Singular, nil
	case "list", "many":
		return List, nil
	default:
		return "", fmt.Errorf("unknown cardinality %q (use singular or list)", value)
	}
}

// deriveReverseRelations adds a list relation on the target of every
// singular relation, mirroring how foreign keys imply both directions.
// An explicitly declared relation back to the owner wins.
func deriveReverseRelations(entities []*Entity, byName map[string]*Entity, namer *naming.Namer) {
	for _, owner := range entities {
		for _, rel := range owner.Relations {
			if rel.IsList() {
				continue
			}
			target, ok := byName[rel.Entity]
			if !ok {
				continue // NewRegistry reports the dangling reference
			}
			if hasRelationTo(target, owner.Name) {
				continue
			}
			foreignKey := rel.ForeignKey
			if foreignKey == "" {
				foreignKey = naming.SnakeCase(rel.Name) + "_id"
			}
			target.Relations = append(target.Relations, Relation{
				Name:        namer.Collection(owner.Name),
				Entity:      owner.Name,
				Cardinality: List,
				ForeignKey:  foreignKey,
				References:  rel.References,
			})
		}
	}
}

func hasRelationTo(entity *Entity, target string) bool {
	for _, rel := range entity.Relations {
		if rel.Entity == target {
			return true
		}
	}
	return false
}

package blocks

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"sideworld/internal/grid"
)

const blockSchemaURL = "sideworld://schemas/block.json"

// blockSchema describes one block type file. The block name is the file stem.
const blockSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["collision_box"],
  "additionalProperties": false,
  "properties": {
    "collision_box": {"enum": ["full", "none"]},
    "replaceable": {"type": "boolean"},
    "transparent": {"type": "boolean"},
    "slice": {"enum": ["background", "middleground", "foreground"]},
    "support": {
      "type": "object",
      "propertyNames": {"pattern": "^\\s*-?[0-9]+\\s+-?[0-9]+\\s*$"},
      "additionalProperties": {"type": "object", "minProperties": 1}
    },
    "counterparts": {
      "type": "object",
      "propertyNames": {"pattern": "^\\s*-?[0-9]+\\s+-?[0-9]+\\s*$"},
      "additionalProperties": {"type": "string", "minLength": 1}
    },
    "overwriteable": {
      "type": "array",
      "items": {"type": "string", "minLength": 1},
      "uniqueItems": true
    },
    "next_layer": {"type": "string", "minLength": 1}
  }
}`

var schema = jsonschema.MustCompileString(blockSchemaURL, blockSchema)

// fileRecord mirrors the on-disk layout of a block type file.
type fileRecord struct {
	CollisionBox  string                    `json:"collision_box"`
	Replaceable   bool                      `json:"replaceable"`
	Transparent   bool                      `json:"transparent"`
	Slice         string                    `json:"slice"`
	Support       map[string]map[string]any `json:"support"`
	Counterparts  map[string]string         `json:"counterparts"`
	Overwriteable []string                  `json:"overwriteable"`
	NextLayer     string                    `json:"next_layer"`
}

// Load reads every .json, .yaml and .yml file directly under dir and builds
// a registry from them. Any malformed file fails the whole load.
func Load(fsys fs.FS, dir string) (*Registry, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read block dir %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	defs := make([]Def, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(path.Ext(entry.Name()))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), path.Ext(entry.Name()))
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read block %s: %w", entry.Name(), err)
		}
		def, err := ParseDef(name, data, ext)
		if err != nil {
			return nil, fmt.Errorf("block %s: %w", entry.Name(), err)
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("no block definitions in %s", dir)
	}
	return NewRegistry(defs...)
}

// ParseDef decodes and validates a single block file body. ext selects YAML
// (".yaml", ".yml") or JSON.
func ParseDef(name string, data []byte, ext string) (Def, error) {
	raw, err := normalize(data, ext)
	if err != nil {
		return Def{}, err
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Def{}, fmt.Errorf("decode: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return Def{}, fmt.Errorf("validate: %w", err)
	}

	var rec fileRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Def{}, fmt.Errorf("decode: %w", err)
	}
	return rec.toDef(name)
}

// normalize turns YAML bodies into JSON so a single schema covers both.
func normalize(data []byte, ext string) ([]byte, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
		out, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("convert yaml: %w", err)
		}
		return out, nil
	default:
		return data, nil
	}
}

func (rec fileRecord) toDef(name string) (Def, error) {
	collision, err := ParseCollision(rec.CollisionBox)
	if err != nil {
		return Def{}, err
	}
	def := Def{
		Name:        name,
		Collision:   collision,
		Replaceable: rec.Replaceable,
		Transparent: rec.Transparent,
		Slice:       grid.Foreground,
		NextLayer:   rec.NextLayer,
	}
	if rec.Slice != "" {
		if def.Slice, err = grid.ParseSlice(rec.Slice); err != nil {
			return Def{}, err
		}
	}

	if len(rec.Support) > 0 {
		keys := make([]string, 0, len(rec.Support))
		for key := range rec.Support {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			dir, err := grid.ParseOffset(key)
			if err != nil {
				return Def{}, fmt.Errorf("support: %w", err)
			}
			rule := SupportRule{Direction: dir, Accepts: make(map[string]struct{}, len(rec.Support[key]))}
			for accepted := range rec.Support[key] {
				rule.Accepts[accepted] = struct{}{}
			}
			def.Support = append(def.Support, rule)
		}
		sort.SliceStable(def.Support, func(i, j int) bool {
			a, b := def.Support[i].Direction, def.Support[j].Direction
			if a.DY != b.DY {
				return a.DY < b.DY
			}
			return a.DX < b.DX
		})
	}

	if len(rec.Counterparts) > 0 {
		def.Counterparts = make(map[grid.Offset]string, len(rec.Counterparts))
		for key, other := range rec.Counterparts {
			off, err := grid.ParseOffset(key)
			if err != nil {
				return Def{}, fmt.Errorf("counterparts: %w", err)
			}
			if _, dup := def.Counterparts[off]; dup {
				return Def{}, fmt.Errorf("counterparts: offset %q listed twice", off)
			}
			def.Counterparts[off] = other
		}
	}

	if len(rec.Overwriteable) > 0 {
		def.Overwriteable = make(map[string]struct{}, len(rec.Overwriteable))
		for _, other := range rec.Overwriteable {
			def.Overwriteable[other] = struct{}{}
		}
	}
	return def, nil
}

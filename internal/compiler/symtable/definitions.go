package symtable

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/btouchard/rs2c/internal/compiler/types"
)

// definitionsFile is the on-disk shape of a symbol catalog: the engine's
// commands, constants and variables, registered before any project diff
// runs. Unlike scripts, none of these are declared by RuneScript source.
type definitionsFile struct {
	Commands []struct {
		Name        string   `mapstructure:"name"`
		Opcode      int      `mapstructure:"opcode"`
		Params      []string `mapstructure:"params"`
		Returns     []string `mapstructure:"returns"`
		Alternative bool     `mapstructure:"alternative"`
	} `mapstructure:"commands"`

	Constants []struct {
		Name  string `mapstructure:"name"`
		Type  string `mapstructure:"type"`
		Value string `mapstructure:"value"`
	} `mapstructure:"constants"`

	RuntimeConstants []struct {
		Name string `mapstructure:"name"`
		Type string `mapstructure:"type"`
	} `mapstructure:"runtime_constants"`

	Variables []struct {
		Domain string `mapstructure:"domain"`
		Name   string `mapstructure:"name"`
		Type   string `mapstructure:"type"`
	} `mapstructure:"variables"`
}

var domainNames = map[string]VarDomain{
	"player":        PLAYER,
	"player_bit":    PLAYER_BIT,
	"client_int":    CLIENT_INT,
	"client_string": CLIENT_STRING,
}

// LoadDefinitions reads a YAML symbol catalog at path and defines every
// command, constant, runtime constant and variable it lists on t.
// Callers run this once before the project's first diff.
func LoadDefinitions(t *Table, path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading symbol catalog %s: %w", path, err)
	}

	var defs definitionsFile
	if err := v.Unmarshal(&defs); err != nil {
		return fmt.Errorf("parsing symbol catalog %s: %w", path, err)
	}

	for _, c := range defs.Commands {
		params, err := lookupAll(c.Params)
		if err != nil {
			return fmt.Errorf("command %q: %w", c.Name, err)
		}
		returns, err := lookupAll(c.Returns)
		if err != nil {
			return fmt.Errorf("command %q: %w", c.Name, err)
		}
		err = t.DefineCommand(&CommandInfo{
			Name:        c.Name,
			Opcode:      c.Opcode,
			Params:      params,
			ReturnType:  types.Tuple(returns...),
			Alternative: c.Alternative,
		})
		if err != nil {
			return err
		}
	}

	for _, c := range defs.Constants {
		typ, ok := types.Lookup(c.Type)
		if !ok {
			return fmt.Errorf("constant %q: unknown type %q", c.Name, c.Type)
		}
		if err := t.DefineConstant(&ConstantInfo{Name: c.Name, Type: typ, Value: c.Value}); err != nil {
			return err
		}
	}

	for _, c := range defs.RuntimeConstants {
		typ, ok := types.Lookup(c.Type)
		if !ok {
			return fmt.Errorf("runtime constant %q: unknown type %q", c.Name, c.Type)
		}
		if err := t.DefineRuntimeConstant(&RuntimeConstantInfo{Name: c.Name, Type: typ}); err != nil {
			return err
		}
	}

	for _, d := range defs.Variables {
		domain, ok := domainNames[d.Domain]
		if !ok {
			return fmt.Errorf("variable %q: unknown domain %q", d.Name, d.Domain)
		}
		typ, ok := types.Lookup(d.Type)
		if !ok {
			return fmt.Errorf("variable %q: unknown type %q", d.Name, d.Type)
		}
		if err := t.DefineVariable(&VariableInfo{Domain: domain, Name: d.Name, Type: typ}); err != nil {
			return err
		}
	}

	return nil
}

func lookupAll(names []string) ([]types.Primitive, error) {
	out := make([]types.Primitive, 0, len(names))
	for _, n := range names {
		p, ok := types.Lookup(n)
		if !ok {
			return nil, fmt.Errorf("unknown type %q", n)
		}
		out = append(out, p)
	}
	return out, nil
}

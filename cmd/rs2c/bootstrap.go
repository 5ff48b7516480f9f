package main

import (
	"fmt"
	"os"

	"github.com/btouchard/rs2c/internal/compiler/bytecode"
	"github.com/btouchard/rs2c/internal/compiler/cache"
	"github.com/btouchard/rs2c/internal/compiler/symtable"
	"github.com/btouchard/rs2c/internal/compiler/types"
	"github.com/btouchard/rs2c/internal/config"
)

// defaultTriggerTypes gives `dynamic`'s resolved type per trigger. proc
// has no ambient event payload so it is absent; triggers that carry one
// resolve dynamic to the scalar the engine hands the script.
var defaultTriggerTypes = map[string]types.Primitive{
	"clientscript": types.Int,
	"opheld":       types.Int,
	"opnpc":        types.Int,
	"oploc":        types.Int,
	"opobj":        types.Int,
	"label":        types.Int,
}

// bootstrap loads configuration and the engine symbol catalog, then
// returns a ready-to-use project cache rooted at the configured source
// directory. cfgPath may be empty.
func bootstrap(cfgPath string) (*config.Config, *cache.Cache, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	table := symtable.New()
	if _, err := os.Stat(cfg.DefinitionsPath); err == nil {
		if err := symtable.LoadDefinitions(table, cfg.DefinitionsPath); err != nil {
			return nil, nil, fmt.Errorf("loading definitions: %w", err)
		}
	}

	c := cache.New(cfg.SourceRoot, table, bytecode.IdentityInstructionMap{}, defaultTriggerTypes)

	if _, err := os.Stat(cfg.CachePath); err == nil {
		if err := c.Load(cfg.CachePath); err != nil {
			return nil, nil, fmt.Errorf("loading cache: %w", err)
		}
	}

	return cfg, c, nil
}

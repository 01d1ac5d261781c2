package registry_ext

import (
	"fmt"

	bizCfg "github.com/grand-thief-cash/chaos/app/projects/norns/internal/config"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/config"
)

// bizConfig returns the decoded biz_config section with defaults applied.
func bizConfig(cfg *config.AppConfig) (*bizCfg.BizConfig, error) {
	biz, _ := cfg.BizConfig.(*bizCfg.BizConfig)
	if biz == nil {
		biz = bizCfg.Default()
	}
	biz.ApplyDefaults()
	if err := biz.Validate(); err != nil {
		return nil, fmt.Errorf("biz_config: %w", err)
	}
	return biz, nil
}

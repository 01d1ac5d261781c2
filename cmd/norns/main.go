package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/grand-thief-cash/chaos/app/projects/norns/internal/api"
	bizConfig "github.com/grand-thief-cash/chaos/app/projects/norns/internal/config"
	bizConsts "github.com/grand-thief-cash/chaos/app/projects/norns/internal/consts"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/application"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/consts"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/core"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/model"
	_ "github.com/grand-thief-cash/chaos/app/projects/norns/internal/registry_ext"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/service"
)

var (
	Version = "v0.1.0"
)

func main() {
	cfgPath := flag.String("config", consts.DEFAULT_CONFIG_PATH, "config file path")
	env := flag.String("env", "", "environment used when NORNS_ENV is unset")
	run := flag.String("run", "", "run one build and exit: basic_info | industry")
	levels := flag.String("levels", "", "industry levels for -run industry, comma separated")
	sources := flag.String("sources", "", "industry sources for -run industry, comma separated")
	flag.Parse()

	biz := bizConfig.Default()
	app := application.NewApp(*env, *cfgPath, biz)

	if *run == "" {
		log.Printf("norns %s starting", Version)
		if err := app.Run(); err != nil {
			log.Fatalf("app exited with error: %v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := app.RunOnce(ctx, func(ctx context.Context, c *core.Container) error {
		builder, err := core.ResolveAs[*service.SnapshotBuilderService](c, bizConsts.COMP_SVC_SNAPSHOT_BUILDER)
		if err != nil {
			return err
		}
		var rep *model.BuildReport
		switch *run {
		case bizConsts.BUILD_BASIC_INFO:
			rep, err = builder.BuildBasicInfo(ctx)
		case bizConsts.BUILD_INDUSTRY:
			rep, err = builder.BuildIndustryClassification(ctx, splitList(*levels), splitList(*sources))
		default:
			return fmt.Errorf("unknown build %q", *run)
		}
		if rep != nil {
			out, _ := json.MarshalIndent(rep, "", "  ")
			fmt.Println(string(out))
		}
		return err
	})
	if err != nil {
		log.Fatalf("build %s failed: %v", *run, err)
	}
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

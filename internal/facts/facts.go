// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package facts gathers the machine facts used to select backends and installable targets
package facts

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"

	"github.com/goccy/go-yaml"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	iu "github.com/choria-io/pkgstore/internal/util"
	"github.com/choria-io/pkgstore/metrics"
	"github.com/choria-io/pkgstore/model"
)

// Tools are the installer commands looked up for the facts tools section
var Tools = []string{"apt-get", "dpkg-query", "dnf", "rpm", "installer", "pkgutil", "msiexec"}

// StandardFacts gathers host facts and merges facts.json and facts.yaml found in dirs over them
func StandardFacts(ctx context.Context, log model.Logger, dirs ...string) (map[string]any, error) {
	timer := prometheus.NewTimer(metrics.FactGatherTime.WithLabelValues())
	defer timer.ObserveDuration()

	sf, err := standardFacts(ctx)
	if err != nil {
		return nil, err
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}

		for _, name := range []string{"facts.json", "facts.yaml"} {
			f, err := readFactsFile(filepath.Join(dir, name))
			switch {
			case os.IsNotExist(err):
				continue
			case err != nil:
				log.Error("Failed to read facts file", "file", filepath.Join(dir, name), "error", err)
			default:
				log.Debug("Merging facts", "file", filepath.Join(dir, name))
				sf = iu.DeepMergeMap(sf, f)
			}
		}
	}

	return sf, nil
}

func readFactsFile(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f map[string]any
	if filepath.Ext(path) == ".json" {
		err = json.Unmarshal(b, &f)
	} else {
		err = yaml.Unmarshal(b, &f)
	}
	if err != nil {
		return nil, err
	}

	return f, nil
}

// Platform extracts the operating system and architecture from facts, falling back to the running binary
func Platform(facts map[string]any) (string, string) {
	platform := runtime.GOOS
	arch := runtime.GOARCH

	hostFacts, ok := facts["host"].(map[string]any)
	if !ok {
		return NormalizePlatform(platform), NormalizeArch(arch)
	}

	info, ok := hostFacts["info"].(map[string]any)
	if !ok {
		return NormalizePlatform(platform), NormalizeArch(arch)
	}

	if v, ok := info["os"].(string); ok && v != "" {
		platform = v
	}
	if v, ok := info["kernelArch"].(string); ok && v != "" {
		arch = v
	}

	return NormalizePlatform(platform), NormalizeArch(arch)
}

// NormalizePlatform maps Go and kernel operating system names to repository platform names
func NormalizePlatform(platform string) string {
	switch platform {
	case "darwin", "macosx":
		return "macos"
	default:
		return platform
	}
}

// NormalizeArch maps Go and kernel architecture names to repository arch names
func NormalizeArch(arch string) string {
	switch arch {
	case "amd64", "x64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "386", "i386", "i586", "x86":
		return "i686"
	default:
		return arch
	}
}

// HasTool reports if the tools section of facts lists name as present
func HasTool(facts map[string]any, name string) bool {
	tools, ok := facts["tools"].(map[string]any)
	if !ok {
		return false
	}

	present, _ := tools[name].(bool)

	return present
}

func standardFacts(ctx context.Context) (map[string]any, error) {
	hostInfo := map[string]any{
		"os":         runtime.GOOS,
		"kernelArch": runtime.GOARCH,
	}
	memoryFacts := map[string]any{}
	cpuFacts := map[string]any{
		"count": runtime.NumCPU(),
	}
	toolFacts := map[string]any{}

	info, err := host.InfoWithContext(ctx)
	if err == nil {
		// round trip through json so facts are plain maps usable by gjson and expr
		j, err := json.Marshal(info)
		if err == nil {
			var m map[string]any
			if json.Unmarshal(j, &m) == nil {
				hostInfo = iu.DeepMergeMap(hostInfo, m)
			}
		}
	}

	virtual, err := mem.VirtualMemoryWithContext(ctx)
	if err == nil {
		memoryFacts["total"] = virtual.Total
		memoryFacts["available"] = virtual.Available
	}

	cpuInfo, err := cpu.InfoWithContext(ctx)
	if err == nil && len(cpuInfo) > 0 {
		cpuFacts["model"] = cpuInfo[0].ModelName
		cpuFacts["vendor"] = cpuInfo[0].VendorID
	}

	for _, tool := range Tools {
		_, found, _ := iu.ExecutableInPath(tool)
		toolFacts[tool] = found
	}

	return map[string]any{
		"host":   map[string]any{"info": hostInfo},
		"memory": memoryFacts,
		"cpu":    cpuFacts,
		"tools":  toolFacts,
	}, nil
}

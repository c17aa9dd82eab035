/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package libinfo reports which go-admitgate version a binary was built with.
package libinfo

import (
	"maps"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const modulePath = "github.com/acronis/go-admitgate"

// UnknownVersion is reported for builds without module information (go run, tests).
const UnknownVersion = "v0.0.0"

// PrometheusLibVersionLabel is the constant label attached to all admission metrics.
const PrometheusLibVersionLabel = "go_admitgate_version"

// AddPrometheusLibVersionLabel returns a copy of labels with the version label added.
func AddPrometheusLibVersionLabel(labels prometheus.Labels) prometheus.Labels {
	res := make(prometheus.Labels, len(labels)+1)
	maps.Copy(res, labels)
	res[PrometheusLibVersionLabel] = GetLibVersion()
	return res
}

var getLibVersion = sync.OnceValue(func() string {
	info, _ := debug.ReadBuildInfo()
	if v := moduleVersion(info, modulePath); v != "" {
		return v
	}
	return UnknownVersion
})

// GetLibVersion returns the go-admitgate version of the running binary.
func GetLibVersion() string {
	return getLibVersion()
}

// moduleVersion looks for path (or its /vN major version) in the main module first,
// which is the case for cmd/admitgate, and then among the dependencies.
func moduleVersion(info *debug.BuildInfo, path string) string {
	if info == nil {
		return ""
	}
	if isModulePath(info.Main.Path, path) && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	for _, dep := range info.Deps {
		if isModulePath(dep.Path, path) {
			return dep.Version
		}
	}
	return ""
}

func isModulePath(candidate, path string) bool {
	suffix, ok := strings.CutPrefix(candidate, path)
	if !ok {
		return false
	}
	if suffix == "" {
		return true
	}
	major, ok := strings.CutPrefix(suffix, "/v")
	if !ok || major == "" {
		return false
	}
	return strings.Trim(major, "0123456789") == ""
}

package buildinfo

// Version 发布构建时通过 -ldflags 注入，例如：
// -X github.com/yuqie6/PlayPulse/internal/pkg/buildinfo.Version=v0.1.0
var Version = "v0.1.0-dev"

// Commit 可选注入 git commit
var Commit = "unknown"

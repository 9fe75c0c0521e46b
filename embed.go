package promostudio

import "embed"

// EmbeddedAssets contains the static assets served under /public:
// studio.css and studio.js.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS

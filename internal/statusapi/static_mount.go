package statusapi

import (
	"embed"

	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
)

//go:embed static/*
var embeddedUI embed.FS

// mountUI serves a one-page landing redirect to the swagger UI at "/ui",
// so the status API has a human-friendly entry point without pulling in
// a full single-page application build.
func mountUI(r *gin.Engine) {
	fs, err := static.EmbedFolder(embeddedUI, "static")
	if err != nil {
		panic("statusapi: failed to load embedded UI filesystem: " + err.Error())
	}
	r.Use(static.Serve("/ui", fs))
}

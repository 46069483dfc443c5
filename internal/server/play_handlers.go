package server

import (
	"bytes"
	"html/template"

	"mainq/internal/middleware"
	"mainq/internal/models"

	"github.com/gofiber/fiber/v2"
)

// iframeSandbox mirrors middleware.SandboxPolicy. Top-level navigation is
// never granted to uploaded content.
const iframeSandbox = "allow-scripts allow-same-origin allow-forms allow-popups"

var embedTemplate = template.Must(template.New("embed").Parse(`<!DOCTYPE html>
<html lang="id">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}} · MAIN Q</title>
<style>html,body{margin:0;height:100%}iframe{border:0;width:100%;height:100%}</style>
</head>
<body{{if .AdFree}} data-ad-slots="off"{{end}}>
<iframe src="{{.Src}}" title="{{.Title}}" sandbox="{{.Sandbox}}" allow="fullscreen" loading="eager"></iframe>
</body>
</html>
`))

type embedView struct {
	Title   string
	Src     string
	Sandbox string
	AdFree  bool
}

// PlayItem handles GET /play/:kind/:id. The raw payload is served under a
// CSP sandbox so it runs in an opaque origin even when opened directly.
func (s *Server) PlayItem(c *fiber.Ctx) error {
	kind, err := parseKind(c)
	if err != nil {
		return nil
	}
	item, err := s.itemSvc(kind).Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	c.Set(fiber.HeaderContentSecurityPolicy, middleware.SandboxPolicy)
	c.Set(fiber.HeaderXFrameOptions, "SAMEORIGIN")
	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Type("html", "utf-8")
	return c.SendString(item.Content)
}

// EmbedItem handles GET /embed/:kind/:id: a wrapper page that frames the
// payload in a sandboxed iframe.
func (s *Server) EmbedItem(c *fiber.Ctx) error {
	kind, err := parseKind(c)
	if err != nil {
		return nil
	}
	item, err := s.itemSvc(kind).Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	adFree, _ := c.Locals(middleware.AdFreeLocal).(bool)
	var buf bytes.Buffer
	err = embedTemplate.Execute(&buf, embedView{
		Title:   item.Title,
		Src:     "/play/" + string(kind) + "/" + item.ID,
		Sandbox: iframeSandbox,
		AdFree:  adFree,
	})
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}

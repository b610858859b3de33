package oracle

import (
	"bytes"
	_ "embed"
	"text/template"

	"github.com/lasersoldier/Turtle-Soup/internal/models"
)

//go:embed prompts/host_en.txt
var hostPromptEN string

//go:embed prompts/host_zh.txt
var hostPromptZH string

var (
	hostTemplateEN = template.Must(template.New("host_en").Parse(hostPromptEN))
	hostTemplateZH = template.Must(template.New("host_zh").Parse(hostPromptZH))
)

const (
	defaultPersonaEN = "Answer strictly with Yes, No, or Irrelevant."
	defaultPersonaZH = "仅回答是、否、或无关。"
)

// SystemInstruction renders the host prompt for the stage described by req.
func SystemInstruction(req Request) (string, error) {
	tmpl, persona := hostTemplateEN, defaultPersonaEN
	if req.Language == models.LanguageZH {
		tmpl, persona = hostTemplateZH, defaultPersonaZH
	}
	if req.Persona != "" {
		persona = req.Persona
	}

	data := struct {
		StageNumber int
		Scenario    string
		Truth       string
		Persona     string
		FinalStage  bool
		Marker      string
	}{
		StageNumber: req.StageIndex + 1,
		Scenario:    req.Scenario,
		Truth:       req.Truth,
		Persona:     persona,
		FinalStage:  req.FinalStage,
		Marker:      StageClearedMarker,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

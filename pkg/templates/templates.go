package templates

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"careerprep/pkg/models"
)

//go:embed templates/*.tmpl
var embeddedTemplates embed.FS

const (
	TemplateTeam       = "team"
	TemplateSupervisor = "supervisor"
)

// Persona is who an auto-response is attributed to
type Persona struct {
	Name       string
	Role       string
	Department string
	SenderType models.SenderType
}

// DefaultPersona answers on behalf of anyone who is not a team member.
var DefaultPersona = Persona{
	Name:       "Sarah Mitchell",
	Role:       "Internship Coordinator",
	Department: "Human Resources",
	SenderType: models.SenderSupervisor,
}

// PromptData contains all data available to response templates
type PromptData struct {
	InternName      string
	OriginalMessage string
	InternReply     string
	JobTitle        string
	CompanyName     string

	SenderName       string
	SenderRole       string
	SenderDepartment string
}

// Prompt is a rendered template ready to send to the completion API
type Prompt struct {
	Template string
	Persona  Persona
	Text     string
}

// Engine handles response template rendering
type Engine struct {
	templates map[string]*template.Template
}

// NewEngine parses the embedded templates
func NewEngine() (*Engine, error) {
	e := &Engine{
		templates: make(map[string]*template.Template),
	}

	for _, name := range []string{TemplateTeam, TemplateSupervisor} {
		content, err := embeddedTemplates.ReadFile("templates/" + name + ".tmpl")
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded template %s: %w", name, err)
		}

		tmpl, err := template.New(name).Option("missingkey=error").Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}

		e.templates[name] = tmpl
	}

	return e, nil
}

// Select picks the template and persona from the sender of the message the
// intern replied to. Team members answer as themselves; everyone else is
// answered by the default persona.
func Select(original models.Message) (string, Persona) {
	if original.SenderType == models.SenderTeam {
		return TemplateTeam, Persona{
			Name:       original.SenderName,
			Role:       original.SenderRole,
			Department: original.SenderDepartment,
			SenderType: models.SenderTeam,
		}
	}
	return TemplateSupervisor, DefaultPersona
}

// Render builds the completion prompt for a reply to original.
func (e *Engine) Render(original models.Message, reply models.Response, session models.Session, profile models.Profile) (*Prompt, error) {
	name, persona := Select(original)

	tmpl, ok := e.templates[name]
	if !ok {
		return nil, fmt.Errorf("unknown template: %s", name)
	}

	data := PromptData{
		InternName:       profile.FullName,
		OriginalMessage:  original.Content,
		InternReply:      reply.Content,
		JobTitle:         session.JobTitle,
		CompanyName:      session.CompanyName,
		SenderName:       persona.Name,
		SenderRole:       persona.Role,
		SenderDepartment: persona.Department,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	return &Prompt{
		Template: name,
		Persona:  persona,
		Text:     buf.String(),
	}, nil
}

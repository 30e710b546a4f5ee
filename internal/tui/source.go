package tui

import (
	"context"
	"fmt"
	"time"

	"escritos/internal/collector"
	"escritos/internal/schema"
)

// PromptSource asks for each field on the terminal. It implements
// collector.Source.
type PromptSource struct {
	Driver PromptDriver
	// Defaults pre-fills prompts. Every answer is stored back so a retry
	// after a failed submission starts from what was typed.
	Defaults collector.Values
	Now      func() time.Time
}

// NewPromptSource returns a PromptSource using driver and the real clock.
func NewPromptSource(driver PromptDriver) *PromptSource {
	return &PromptSource{Driver: driver, Now: time.Now}
}

func (p *PromptSource) Text(ctx context.Context, field schema.Field) (string, error) {
	v, err := p.Driver.Input(ctx, InputConfig{
		Message: collector.Label(field.Name) + ":",
		Default: p.Defaults[field.Name],
	})
	return p.remember(field, v, err)
}

func (p *PromptSource) MultiLine(ctx context.Context, field schema.Field) (string, error) {
	v, err := p.Driver.TextArea(ctx, TextAreaConfig{
		Message: collector.Label(field.Name) + ":",
		Default: p.Defaults[field.Name],
	})
	return p.remember(field, v, err)
}

// Date defaults to today, like a calendar widget opened on the current day.
func (p *PromptSource) Date(ctx context.Context, field schema.Field) (time.Time, error) {
	def := p.Defaults[field.Name]
	if def == "" {
		def = p.today().Format(collector.DateLayout)
	}
	raw, err := p.Driver.Input(ctx, InputConfig{
		Message: collector.Label(field.Name) + ":",
		Default: def,
		Help:    "DD/MM/AAAA",
		Validator: func(s string) error {
			_, err := collector.ParseDate(field.Name, s)
			return err
		},
	})
	if _, err := p.remember(field, raw, err); err != nil {
		return time.Time{}, err
	}
	return collector.ParseDate(field.Name, raw)
}

func (p *PromptSource) remember(field schema.Field, v string, err error) (string, error) {
	if err != nil {
		return "", err
	}
	if p.Defaults == nil {
		p.Defaults = make(collector.Values)
	}
	p.Defaults[field.Name] = v
	return v, nil
}

func (p *PromptSource) today() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// ChooseType asks for one of names; the first entry is preselected.
func ChooseType(ctx context.Context, driver PromptDriver, names []string) (string, error) {
	idx, err := driver.Select(ctx, SelectConfig{
		Message: "Selecciona el tipo de escrito:",
		Options: names,
	})
	if err != nil {
		return "", err
	}
	if idx < 0 || idx >= len(names) {
		return "", fmt.Errorf("tui: invalid selection %d", idx)
	}
	return names[idx], nil
}

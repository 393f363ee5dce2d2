package report

import (
	"fmt"

	"mafserver/models"
)

// Generator renders a downloadable statistics report for one profile.
type Generator interface {
	Generate(profile models.Profile) ([]byte, error)
}

// TextGenerator renders the report as plain text.
type TextGenerator struct{}

func (TextGenerator) Generate(p models.Profile) ([]byte, error) {
	text := fmt.Sprintf(`
=======================================
Login: %s
Name: %s
Gender: %s
Mail: %s
=======================================
Total time: %d
Sessions played: %d
Games won: %d
Games lost: %d
`, p.Login, p.Name, p.Gender, p.Mail, p.TotalTime, p.SessionCount, p.WinCount, p.LoseCount)
	return []byte(text), nil
}

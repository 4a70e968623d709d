package sender

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

type emailTemplate struct {
	subject *template.Template
	body    *template.Template
}

const bodyText = `Здравствуйте, {{.UserName}}!

{{.Lead}}

Подписка: {{.Name}}
Стоимость: {{.Price}} {{.Currency}} ({{.Frequency}})
Дата продления: {{.RenewalDate}}
Способ оплаты: {{.PaymentMethod}}

Если вы не планируете продлевать подписку, отмените её до даты продления.
`

// leads первая строка письма для каждого дня напоминания.
var leads = map[int]string{
	7: "Ваша подписка продлится через неделю.",
	5: "До продления подписки осталось 5 дней.",
	3: "До продления подписки осталось 3 дня, проверьте способ оплаты.",
	1: "Подписка продлится завтра.",
}

type templateData struct {
	models.SubscriptionSnapshot
	Lead        string
	Days        int
	RenewalDate string
}

func buildTemplates() (map[int]emailTemplate, error) {
	body, err := template.New("body").Parse(bodyText)
	if err != nil {
		return nil, fmt.Errorf("parse body template: %w", err)
	}
	out := make(map[int]emailTemplate, len(models.ReminderOffsets))
	for _, offset := range models.ReminderOffsets {
		subject, err := template.New(fmt.Sprintf("subject-%d", offset)).
			Parse(`Напоминание: {{.Name}} продлится через {{.Days}} дн.`)
		if err != nil {
			return nil, fmt.Errorf("parse subject template: %w", err)
		}
		out[offset] = emailTemplate{subject: subject, body: body}
	}
	return out, nil
}

func (t emailTemplate) render(offset int, sub models.SubscriptionSnapshot) (string, string, error) {
	data := templateData{
		SubscriptionSnapshot: sub,
		Lead:                 leads[offset],
		Days:                 offset,
		RenewalDate:          sub.RenewalDate.UTC().Format(time.DateOnly),
	}

	var subject, body bytes.Buffer
	if err := t.subject.Execute(&subject, data); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	if err := t.body.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	return subject.String(), body.String(), nil
}

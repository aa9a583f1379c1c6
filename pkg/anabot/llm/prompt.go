package llm

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/linsalefe/anabot/pkg/anabot/bot"
)

// systemPrompt renders the SDR persona prompt: short PT-BR replies, focus
// on the selected course, always steering toward enrollment.
func (c *Client) systemPrompt(pc bot.PromptContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Você é %s, assistente de vendas do %s no WhatsApp.\n\n", c.botName, c.company)
	b.WriteString("Regras-chave:\n")
	b.WriteString("- Respostas curtas: no máximo 3 linhas, PT-BR, claras e diretas, sempre com CTA.\n")
	fmt.Fprintf(&b, "- Sempre se apresente: \"Sou a %s, do %s\".\n", c.botName, c.company)
	b.WriteString("- Se não souber responder, encaminhe para um atendente humano.\n")
	b.WriteString("- Se o lead pedir para agendar uma conversa ou falar com um atendente, finalize a resposta com o marcador #AGENDAR.\n")
	b.WriteString("- NÃO invente preços, datas ou links. Use apenas o que consta no contexto.\n")

	if pc.Product != nil {
		fmt.Fprintf(&b, "- Foco somente no curso de interesse informado: %s. Não sugerir outros cursos.\n", pc.Product.Title)
		b.WriteString("\nCurso selecionado:\n")
		fmt.Fprintf(&b, "- Título: %s (%s)\n", pc.Product.Title, pc.Product.Type)
		if pc.Product.Dates != "" {
			fmt.Fprintf(&b, "- Datas: %s\n", pc.Product.Dates)
		}
		if pc.Product.Location != "" {
			fmt.Fprintf(&b, "- Local: %s\n", pc.Product.Location)
		}
		if pc.Product.EnrollURL != "" {
			fmt.Fprintf(&b, "- Link de inscrição: %s\n", pc.Product.EnrollURL)
		}
		if pc.Product.ProgramURL != "" {
			fmt.Fprintf(&b, "- Cronograma: %s\n", pc.Product.ProgramURL)
		}
	}

	fmt.Fprintf(&b, "\nIntenção detectada na última mensagem: %s\n", pc.Intent)
	fmt.Fprintf(&b, "Hoje: %s. Timezone: %s.\n", c.today(), c.timezone)

	if pc.Corpus != "" {
		b.WriteString("\nBase de conhecimento (use apenas o que for útil):\n")
		b.WriteString(pc.Corpus)
		b.WriteString("\n")
	}

	return b.String()
}

func (c *Client) today() string {
	loc, err := time.LoadLocation(c.timezone)
	if err != nil {
		return time.Now().Format("2006-01-02")
	}
	return time.Now().In(loc).Format("2006-01-02")
}

var multiBreakRE = regexp.MustCompile(`\n{3,}`)
var sentenceRE = regexp.MustCompile(`(?:[.!?])\s+`)

// clampLines enforces the short-reply contract: at most max non-empty
// lines. Single long blocks are re-split on sentence boundaries before
// truncation so the reply stays readable.
func clampLines(text string, max int) string {
	text = multiBreakRE.ReplaceAllString(strings.TrimSpace(text), "\n\n")

	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	if len(lines) <= 1 && len(text) > 140 {
		lines = splitSentences(text, max)
	}
	if len(lines) > max {
		lines = lines[:max]
	}
	return strings.Join(lines, "\n")
}

// splitSentences rebalances one long block into up to max short lines.
func splitSentences(text string, max int) []string {
	var lines []string
	current := ""
	start := 0
	for _, loc := range sentenceRE.FindAllStringIndex(text, -1) {
		sentence := strings.TrimSpace(text[start:loc[1]])
		start = loc[1]
		candidate := sentence
		if current != "" {
			candidate = current + " " + sentence
		}
		if len(candidate) > 140 && current != "" {
			lines = append(lines, current)
			current = sentence
		} else {
			current = candidate
		}
		if len(lines) == max {
			break
		}
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" && len(lines) < max {
		if current != "" && len(current)+len(rest) <= 140 {
			current += " " + rest
		} else if current != "" {
			lines = append(lines, current)
			current = rest
		} else {
			current = rest
		}
	}
	if current != "" && len(lines) < max {
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		return []string{text}
	}
	return lines
}

package bot

import (
	"strings"

	"github.com/linsalefe/anabot/pkg/anabot/knowledge"
)

// Intent is the coarse label assigned to an inbound message.
type Intent string

const (
	IntentGreeting         Intent = "greeting"
	IntentPricing          Intent = "pricing"
	IntentEnrollment       Intent = "enrollment"
	IntentLinkRequest      Intent = "link_request"
	IntentEvents           Intent = "events"
	IntentPostgrad         Intent = "postgrad"
	IntentCourses          Intent = "courses"
	IntentSchedule         Intent = "schedule"
	IntentLocation         Intent = "location"
	IntentProcess          Intent = "process"
	IntentCertification    Intent = "certification"
	IntentInfoRequest      Intent = "info_request"
	IntentPositiveResponse Intent = "positive_response"
	IntentNegativeResponse Intent = "negative_response"
	IntentProduct          Intent = "product"
	IntentGeneral          Intent = "general"
)

// intentRule maps a keyword set to a label. Rules are evaluated in order;
// first match wins.
type intentRule struct {
	intent   Intent
	keywords []string
}

// Keywords are stored accent-stripped and lower-cased. Multi-word keywords
// match as substrings; single words match whole tokens only, so "sim" does
// not fire inside "simposio".
var intentRules = []intentRule{
	{IntentGreeting, []string{"oi", "ola", "hey", "hello", "bom dia", "boa tarde", "boa noite", "tudo bem"}},
	{IntentPricing, []string{"preco", "valor", "investimento", "mensalidade", "quanto custa", "quanto fica", "desconto", "parcela"}},
	{IntentEnrollment, []string{"inscricao", "inscrever", "matricula", "matricular", "quero me inscrever", "como participo", "garantir vaga", "vaga"}},
	{IntentLinkRequest, []string{"link", "site", "pagina", "url"}},
	{IntentEvents, []string{"congresso", "evento", "simposio", "workshop", "palestra"}},
	{IntentPostgrad, []string{"pos", "pos-graduacao", "especializacao", "mba", "lato sensu"}},
	{IntentCourses, []string{"curso", "cursos", "capacitacao", "formacao", "treinamento"}},
	{IntentSchedule, []string{"cronograma", "grade", "horario", "agenda", "datas", "quando comeca", "data de inicio", "calendario"}},
	{IntentLocation, []string{"onde", "local", "endereco", "cidade", "presencial", "online", "ead"}},
	{IntentProcess, []string{"processo", "etapas", "como funciona", "selecao", "requisitos"}},
	{IntentCertification, []string{"certificado", "certificacao", "diploma", "reconhecido pelo mec", "mec"}},
	{IntentInfoRequest, []string{"informacao", "informacoes", "detalhes", "saber mais", "conte mais", "me fale", "me explica"}},
	{IntentPositiveResponse, []string{"sim", "quero", "claro", "ok", "perfeito", "pode ser", "com certeza", "tenho interesse", "topo"}},
	{IntentNegativeResponse, []string{"nao", "depois", "talvez", "agora nao", "sem interesse"}},
}

// Classify assigns a deterministic intent label to the text: identical
// input always yields the same label, independent of session state. The
// catalog snapshot is consulted only for the alias-match rule that runs
// after every keyword rule missed.
func Classify(text string, kb *knowledge.Snapshot) Intent {
	normalized := knowledge.NormalizeText(text)
	if normalized == "" {
		return IntentGeneral
	}
	tokens := tokenSet(normalized)

	for _, rule := range intentRules {
		for _, kw := range rule.keywords {
			if matchKeyword(normalized, tokens, kw) {
				return rule.intent
			}
		}
	}

	if kb != nil {
		if _, ok := kb.MatchAlias(text); ok {
			return IntentProduct
		}
	}
	return IntentGeneral
}

func matchKeyword(text string, tokens map[string]bool, kw string) bool {
	if strings.ContainsAny(kw, " -") {
		return strings.Contains(text, kw)
	}
	return tokens[kw]
}

func tokenSet(normalized string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(normalized, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		set[tok] = true
	}
	return set
}

package bot

import "testing"

func TestClassify(t *testing.T) {
	snap := testSnapshot(t)

	cases := []struct {
		text string
		want Intent
	}{
		{"Oi, bom dia!", IntentGreeting},
		{"Qual o valor da mensalidade?", IntentPricing},
		{"quanto custa o curso?", IntentPricing},
		{"Como faço minha inscrição?", IntentEnrollment},
		{"quero garantir vaga", IntentEnrollment},
		{"me manda o link do site", IntentLinkRequest},
		{"vai ter congresso esse ano?", IntentEvents},
		{"tem simpósio presencial?", IntentEvents},
		{"quero uma pós-graduação", IntentPostgrad},
		{"quais cursos vocês têm?", IntentCourses},
		{"qual o cronograma das aulas?", IntentSchedule},
		{"onde ficam as aulas?", IntentLocation},
		{"como funciona o processo seletivo?", IntentProcess},
		{"o certificado é reconhecido?", IntentCertification},
		{"quero saber mais detalhes", IntentInfoRequest},
		{"sim, pode ser", IntentPositiveResponse},
		{"tenho interesse", IntentPositiveResponse},
		{"não, obrigado", IntentNegativeResponse},
		{"psicologia clínica", IntentProduct},
		{"xyzzy", IntentGeneral},
		{"", IntentGeneral},
	}

	for _, tc := range cases {
		if got := Classify(tc.text, snap); got != tc.want {
			t.Errorf("Classify(%q) = %s, want %s", tc.text, got, tc.want)
		}
	}

	t.Run("deterministic across calls", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			if got := Classify("Qual o valor da mensalidade?", snap); got != IntentPricing {
				t.Fatalf("iteration %d: got %s", i, got)
			}
		}
	})

	t.Run("short tokens do not match inside words", func(t *testing.T) {
		// "assim" contains "sim" but must not classify as positive_response.
		if got := Classify("assim fica combinado então combustível", snap); got == IntentPositiveResponse {
			t.Error("token 'sim' matched inside 'assim'")
		}
	})

	t.Run("nil snapshot skips alias rule", func(t *testing.T) {
		if got := Classify("psicologia clínica", nil); got != IntentGeneral {
			t.Errorf("expected general without catalog, got %s", got)
		}
	})
}

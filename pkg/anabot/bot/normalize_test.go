package bot

import "testing"

func TestNormalize(t *testing.T) {
	n := &Normalizer{SuppressSelfEcho: true}

	t.Run("top-level conversation message", func(t *testing.T) {
		body := `{"key":{"remoteJid":"5511999999999@s.whatsapp.net","fromMe":false},"pushName":"Maria","message":{"conversation":"Oi, tudo bem?"}}`
		ev, reason := n.Normalize([]byte(body))
		if reason != "" {
			t.Fatalf("expected accept, got reason %q", reason)
		}
		if ev.Phone != "5511999999999" {
			t.Errorf("unexpected phone: %q", ev.Phone)
		}
		if ev.Text != "Oi, tudo bem?" {
			t.Errorf("unexpected text: %q", ev.Text)
		}
		if ev.PushName != "Maria" {
			t.Errorf("unexpected push name: %q", ev.PushName)
		}
	})

	t.Run("message nested in messages[0]", func(t *testing.T) {
		body := `{"messages":[{"key":{"remoteJid":"5511888888888@s.whatsapp.net"},"message":{"extendedTextMessage":{"text":"Quero saber valores"}}}]}`
		ev, reason := n.Normalize([]byte(body))
		if reason != "" {
			t.Fatalf("expected accept, got reason %q", reason)
		}
		if ev.Phone != "5511888888888" || ev.Text != "Quero saber valores" {
			t.Errorf("unexpected event: %+v", ev)
		}
	})

	t.Run("ephemeral envelope is unwrapped one level", func(t *testing.T) {
		body := `{"key":{"remoteJid":"5511777777777@s.whatsapp.net"},"message":{"ephemeralMessage":{"message":{"conversation":"mensagem efêmera"}}}}`
		ev, reason := n.Normalize([]byte(body))
		if reason != "" {
			t.Fatalf("expected accept, got reason %q", reason)
		}
		if ev.Text != "mensagem efêmera" {
			t.Errorf("unexpected text: %q", ev.Text)
		}
	})

	t.Run("caption fallbacks in order", func(t *testing.T) {
		cases := []struct {
			name string
			body string
			want string
		}{
			{"image caption", `{"key":{"remoteJid":"55@s"},"message":{"imageMessage":{"caption":"foto do curso"}}}`, "foto do curso"},
			{"document caption", `{"key":{"remoteJid":"55@s"},"message":{"documentMessage":{"caption":"edital"}}}`, "edital"},
			{"video caption", `{"key":{"remoteJid":"55@s"},"message":{"videoMessage":{"caption":"aula gravada"}}}`, "aula gravada"},
		}
		for _, tc := range cases {
			ev, reason := n.Normalize([]byte(tc.body))
			if reason != "" {
				t.Errorf("%s: expected accept, got %q", tc.name, reason)
				continue
			}
			if ev.Text != tc.want {
				t.Errorf("%s: got %q, want %q", tc.name, ev.Text, tc.want)
			}
		}
	})

	t.Run("phone falls back to explicit field", func(t *testing.T) {
		body := `{"phone":"+55 (11) 96666-6666","message":{"conversation":"oi"}}`
		ev, reason := n.Normalize([]byte(body))
		if reason != "" {
			t.Fatalf("expected accept, got reason %q", reason)
		}
		if ev.Phone != "5511966666666" {
			t.Errorf("expected digits only, got %q", ev.Phone)
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		if _, reason := n.Normalize([]byte("not json")); reason != ReasonInvalidJSON {
			t.Errorf("expected invalid_json, got %q", reason)
		}
	})

	t.Run("own message suppressed", func(t *testing.T) {
		body := `{"key":{"remoteJid":"5511999999999@s.whatsapp.net","fromMe":true},"message":{"conversation":"eco"}}`
		if _, reason := n.Normalize([]byte(body)); reason != ReasonOwnMessage {
			t.Errorf("expected own_message, got %q", reason)
		}
	})

	t.Run("own message allowed when suppression disabled", func(t *testing.T) {
		open := &Normalizer{SuppressSelfEcho: false}
		body := `{"key":{"remoteJid":"5511999999999@s.whatsapp.net","fromMe":true},"message":{"conversation":"eco"}}`
		ev, reason := open.Normalize([]byte(body))
		if reason != "" {
			t.Fatalf("expected accept, got %q", reason)
		}
		if !ev.FromMe {
			t.Error("expected FromMe flag set")
		}
	})

	t.Run("missing phone or text", func(t *testing.T) {
		cases := []string{
			`{"message":{"conversation":"sem telefone"}}`,
			`{"key":{"remoteJid":"5511999999999@s.whatsapp.net"},"message":{}}`,
			`{"key":{"remoteJid":"5511999999999@s.whatsapp.net"}}`,
			`{}`,
		}
		for _, body := range cases {
			if _, reason := n.Normalize([]byte(body)); reason != ReasonNoPhoneOrText {
				t.Errorf("body %s: expected no_phone_or_text, got %q", body, reason)
			}
		}
	})
}

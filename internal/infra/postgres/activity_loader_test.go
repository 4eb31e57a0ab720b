package postgres

import (
	"testing"

	"histosaga-service/internal/question"
)

func TestDecodeActivityUsesRowID(t *testing.T) {
	raw := []byte(`{
		"id": "stale",
		"materia": "historia",
		"titulo": "Grécia Antiga",
		"posicao": 4,
		"questoes": [
			{"tipo": "verdadeiro-falso", "afirmativa": "Atenas era uma democracia", "correta": true}
		]
	}`)
	activity, err := decodeActivity("grecia", raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if activity.ID != "grecia" || activity.Position != 4 {
		t.Fatalf("unexpected activity %+v", activity)
	}
	if activity.Questions[0].Kind() != question.KindTrueFalse {
		t.Fatalf("expected true/false question, got %s", activity.Questions[0].Kind())
	}
}

func TestDecodeActivityRejectsUnknownKind(t *testing.T) {
	raw := []byte(`{"questoes": [{"tipo": "desenho"}]}`)
	if _, err := decodeActivity("x", raw); err == nil {
		t.Fatalf("expected decode error")
	}
}

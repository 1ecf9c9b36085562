package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateContentSummary(t *testing.T) {
	if err := ValidateContent(ArtifactSummary, []byte(`{"summary":"Cells divide.","word_count":2}`)); err != nil {
		t.Fatalf("valid summary rejected: %v", err)
	}
	if err := ValidateContent(ArtifactSummary, []byte(`{"summary":"   ","word_count":0}`)); err == nil {
		t.Fatalf("blank summary accepted")
	}
	if err := ValidateContent(ArtifactSummary, []byte(`{"summary":"x","word_count":1,"extra":true}`)); err == nil {
		t.Fatalf("unknown field accepted")
	}
}

func TestValidateContentRejectsCrossTypePayload(t *testing.T) {
	quizPayload := []byte(`{"questions":[{"question":"q","options":["a","b"],"correct_answer":"a"}]}`)
	err := ValidateContent(ArtifactSummary, quizPayload)
	if err == nil {
		t.Fatalf("quiz payload accepted as summary")
	}
	if !errors.Is(err, ErrInvalidContent) {
		t.Fatalf("expected ErrInvalidContent, got %v", err)
	}
}

func TestValidateContentQuiz(t *testing.T) {
	valid := []byte(`{"questions":[{"question":"What produces ATP?","options":["Mitochondria","Ribosome"],"correct_answer":"Mitochondria"}]}`)
	if err := ValidateContent(ArtifactQuiz, valid); err != nil {
		t.Fatalf("valid quiz rejected: %v", err)
	}

	wrongAnswer := []byte(`{"questions":[{"question":"q","options":["a","b"],"correct_answer":"c"}]}`)
	if err := ValidateContent(ArtifactQuiz, wrongAnswer); err == nil {
		t.Fatalf("correct answer outside options accepted")
	}

	oneOption := []byte(`{"questions":[{"question":"q","options":["a"],"correct_answer":"a"}]}`)
	if err := ValidateContent(ArtifactQuiz, oneOption); err == nil {
		t.Fatalf("single-option question accepted")
	}
}

func TestContentHashIgnoresKeyOrderAndWhitespace(t *testing.T) {
	a := []byte(`{"summary":"Cells divide.","word_count":2}`)
	b := []byte(`{
		"word_count": 2,
		"summary": "Cells divide."
	}`)
	ha, err := ContentHash(ArtifactSummary, a)
	if err != nil {
		t.Fatalf("hash a: %v", err)
	}
	hb, err := ContentHash(ArtifactSummary, b)
	if err != nil {
		t.Fatalf("hash b: %v", err)
	}
	if ha != hb {
		t.Fatalf("hashes differ for equivalent content: %s vs %s", ha, hb)
	}

	c := []byte(`{"summary":"Cells divide!","word_count":2}`)
	hc, err := ContentHash(ArtifactSummary, c)
	if err != nil {
		t.Fatalf("hash c: %v", err)
	}
	if ha == hc {
		t.Fatalf("different content produced the same hash")
	}
}

func TestCanonicalTextPerType(t *testing.T) {
	text, err := CanonicalText(ArtifactKeyPoints, []byte(`{"keypoints":["first point","second point"]}`))
	if err != nil {
		t.Fatalf("keypoints canonical text: %v", err)
	}
	if text != "first point\nsecond point" {
		t.Fatalf("unexpected keypoints text %q", text)
	}

	text, err = CanonicalText(ArtifactQuiz, []byte(`{"questions":[{"question":"What produces ATP?","options":["Mitochondria","Ribosome"],"correct_answer":"Mitochondria"}]}`))
	if err != nil {
		t.Fatalf("quiz canonical text: %v", err)
	}
	if !strings.Contains(text, "What produces ATP?") || !strings.Contains(text, "Mitochondria") {
		t.Fatalf("quiz text missing question or answer: %q", text)
	}
}

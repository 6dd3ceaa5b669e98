package llm

import "testing"

func TestTokenBudgetFor(t *testing.T) {
	t.Parallel()

	b := TokenBudget{Small: 300, Default: 700, Large: 1200}

	cases := []struct {
		name  string
		query string
		want  int
	}{
		{name: "short", query: "opening hours?", want: 300},
		{name: "compare", query: "compare the basic and premium facial", want: 1200},
		{name: "versus", query: "botox vs filler", want: 1200},
		{name: "explain", query: "Explain how the deposit works", want: 1200},
		{name: "thai compare", query: "เปรียบเทียบแพ็กเกจ", want: 1200},
		{name: "spanish difference", query: "cuál es la diferencia entre los planes", want: 1200},
		{name: "directions", query: "how do I get to your shop", want: 300},
		{name: "how do work", query: "how do deposits and refunds work here?", want: 1200},
		{name: "how does", query: "how does laser hair removal feel", want: 1200},
		{name: "long plain", query: "I would like to book a haircut for next Tuesday afternoon at the downtown branch", want: 700},
		{name: "short thai", query: "ราคาเท่าไหร่", want: 300},
		{name: "long thai", query: "อยากจองคิวตัดผมวันอังคารหน้าช่วงบ่ายที่สาขาสยามพร้อมสระไดร์และทำสีผมด้วยได้ไหมคะ", want: 700},
	}

	for _, tc := range cases {
		if got := b.For(tc.query); got != tc.want {
			t.Fatalf("%s: For(%q) = %d, want %d", tc.name, tc.query, got, tc.want)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := Config{APIKey: "k", Model: "m", SmallMaxTokens: 300, MaxCompletionToken: 700, LargeMaxTokens: 1200}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	bad := cfg
	bad.LargeMaxTokens = 500
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error when large cap is below default")
	}

	noKey := cfg
	noKey.APIKey = " "
	if err := noKey.Validate(); err == nil {
		t.Fatal("expected error for missing api key")
	}

	or := cfg.OpenRouter()
	if or.MaxCompletionToken == nil || *or.MaxCompletionToken != 1200 {
		t.Fatalf("OpenRouter() cap = %v, want 1200", or.MaxCompletionToken)
	}
}

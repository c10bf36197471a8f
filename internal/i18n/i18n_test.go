package i18n

import (
	"testing"
)

func TestNewTranslator(t *testing.T) {
	translator := NewTranslator(LanguageJapanese)

	if translator == nil {
		t.Fatal("Expected translator to be created")
	}

	if translator.GetLanguage() != LanguageJapanese {
		t.Errorf("Expected language to be ja, got %s", translator.GetLanguage())
	}
}

func TestLoadTranslations(t *testing.T) {
	translator := NewTranslator(LanguageJapanese)

	jaData := []byte(`{
		"menu.history": "履歴",
		"menu.quit": "終了"
	}`)

	if err := translator.LoadTranslations(LanguageJapanese, jaData); err != nil {
		t.Fatalf("Failed to load translations: %v", err)
	}

	if text := translator.Translate("menu.history"); text != "履歴" {
		t.Errorf("Expected '履歴', got '%s'", text)
	}
}

func TestLoadTranslationsRejectsMalformedJSON(t *testing.T) {
	translator := NewTranslator(LanguageEnglish)

	if err := translator.LoadTranslations(LanguageEnglish, []byte(`{broken`)); err == nil {
		t.Error("Expected error for malformed JSON")
	}
}

func TestSetLanguage(t *testing.T) {
	translator := NewTranslator(LanguageEnglish)

	translator.SetLanguage(LanguageJapanese)

	if translator.GetLanguage() != LanguageJapanese {
		t.Errorf("Expected language to be ja, got %s", translator.GetLanguage())
	}
}

func TestTranslateFallsBackToEnglish(t *testing.T) {
	translator := NewTranslator(LanguageJapanese)

	// Only English translations are loaded; Japanese lookups must fall
	// back rather than return the key.
	translator.LoadTranslations(LanguageEnglish, []byte(`{"menu.quit": "Quit"}`))

	if text := translator.Translate("menu.quit"); text != "Quit" {
		t.Errorf("Expected 'Quit' (fallback), got '%s'", text)
	}
}

func TestTranslateUnknownKeyReturnsKey(t *testing.T) {
	translator := NewTranslator(LanguageEnglish)

	if text := translator.Translate("nonexistent.key"); text != "nonexistent.key" {
		t.Errorf("Expected 'nonexistent.key', got '%s'", text)
	}
}

func TestTranslateWithFormat(t *testing.T) {
	translator := NewTranslator(LanguageEnglish)

	translator.LoadTranslations(LanguageEnglish,
		[]byte(`{"notification.stopped": "Recording stopped ({reason})"}`))

	text := translator.TranslateWithFormat("notification.stopped", map[string]string{
		"reason": "silence",
	})

	if text != "Recording stopped (silence)" {
		t.Errorf("Expected 'Recording stopped (silence)', got '%s'", text)
	}
}

func TestGetAllTranslationsReturnsCopy(t *testing.T) {
	translator := NewTranslator(LanguageEnglish)

	translator.LoadTranslations(LanguageEnglish, []byte(`{"menu.quit": "Quit"}`))

	translations := translator.GetAllTranslations()
	translations["menu.quit"] = "mutated"

	if text := translator.Translate("menu.quit"); text != "Quit" {
		t.Errorf("Mutating the returned map changed the translator: got '%s'", text)
	}
}

func TestHasTranslation(t *testing.T) {
	translator := NewTranslator(LanguageEnglish)

	translator.LoadTranslations(LanguageEnglish, []byte(`{"menu.quit": "Quit"}`))

	if !translator.HasTranslation("menu.quit") {
		t.Error("Expected translation 'menu.quit' to exist")
	}

	if translator.HasTranslation("nonexistent.key") {
		t.Error("Expected translation 'nonexistent.key' to not exist")
	}
}

func TestValidateLanguage(t *testing.T) {
	tests := []struct {
		language string
		expected bool
	}{
		{"ja", true},
		{"en", true},
		{"fr", false},
		{"", false},
	}

	for _, test := range tests {
		if result := ValidateLanguage(test.language); result != test.expected {
			t.Errorf("ValidateLanguage(%s) = %v, expected %v", test.language, result, test.expected)
		}
	}
}

func TestDefaultTranslationsCoverSessionStatus(t *testing.T) {
	// The tray tooltip and settings page rely on these keys in both
	// bundled languages.
	keys := []string{
		"status.idle",
		"status.calibrating",
		"status.listening",
		"status.processing",
		"settings.silence",
		"settings.silence_duration",
		"notification.stopped_silence",
		"notification.stopped_duration",
		"menu.history",
	}

	en := DefaultEnglishTranslations()
	ja := DefaultJapaneseTranslations()

	for _, key := range keys {
		if _, ok := en[key]; !ok {
			t.Errorf("English translations missing key %q", key)
		}
		if _, ok := ja[key]; !ok {
			t.Errorf("Japanese translations missing key %q", key)
		}
	}
}

func TestDefaultTranslationKeyParity(t *testing.T) {
	en := DefaultEnglishTranslations()
	ja := DefaultJapaneseTranslations()

	if len(en) != len(ja) {
		t.Errorf("Expected matching bundle sizes, got en=%d ja=%d", len(en), len(ja))
	}

	for key := range en {
		if _, ok := ja[key]; !ok {
			t.Errorf("Japanese bundle missing key %q", key)
		}
	}
}

func TestDefaultEnglishTranslations(t *testing.T) {
	translations := DefaultEnglishTranslations()

	if translations["menu.quit"] != "Quit" {
		t.Error("Expected 'menu.quit' translation to be 'Quit'")
	}

	if translations["status.processing"] != "Transcribing" {
		t.Errorf("Expected 'status.processing' to be 'Transcribing', got '%s'",
			translations["status.processing"])
	}
}

func TestDefaultJapaneseTranslations(t *testing.T) {
	translations := DefaultJapaneseTranslations()

	if translations["menu.quit"] != "終了" {
		t.Error("Expected 'menu.quit' translation to be '終了'")
	}
}

func TestConcurrentTranslation(t *testing.T) {
	translator := NewTranslator(LanguageEnglish)

	translator.LoadTranslations(LanguageEnglish, []byte(`{"test.key": "value"}`))

	done := make(chan bool, 10)

	for i := 0; i < 10; i++ {
		go func() {
			if text := translator.Translate("test.key"); text != "value" {
				t.Errorf("Expected 'value', got '%s'", text)
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestGlobalTranslator(t *testing.T) {
	GlobalTranslator = NewTranslator(LanguageEnglish)
	defer func() { GlobalTranslator = nil }()

	GlobalTranslator.LoadTranslations(LanguageEnglish,
		[]byte(`{"test.key": "value", "greeting": "Hello, {name}!"}`))

	if text := T("test.key"); text != "value" {
		t.Errorf("Expected 'value', got '%s'", text)
	}

	if text := TF("greeting", map[string]string{"name": "World"}); text != "Hello, World!" {
		t.Errorf("Expected 'Hello, World!', got '%s'", text)
	}
}

func TestGlobalTranslatorNilIsSafe(t *testing.T) {
	GlobalTranslator = nil

	if text := T("some.key"); text != "some.key" {
		t.Errorf("Expected key passthrough, got '%s'", text)
	}
}

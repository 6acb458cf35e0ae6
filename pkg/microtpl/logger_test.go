package microtpl

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogger(t *testing.T) {
	tests := []struct {
		name           string
		level          LogLevel
		expectedOutput []string
		notExpected    []string
	}{
		{
			name:           "debug level shows all messages",
			level:          LogDebug,
			expectedOutput: []string{"[DEBUG] debug message", "[INFO] info message", "[WARN] warn message", "[ERROR] error message"},
		},
		{
			name:           "info level hides debug messages",
			level:          LogInfo,
			expectedOutput: []string{"[INFO] info message", "[WARN] warn message", "[ERROR] error message"},
			notExpected:    []string{"debug message"},
		},
		{
			name:           "error level shows only errors",
			level:          LogError,
			expectedOutput: []string{"[ERROR] error message"},
			notExpected:    []string{"debug message", "info message", "warn message"},
		},
		{
			name:        "off level shows nothing",
			level:       LogOff,
			notExpected: []string{"message"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewLogger(&buf, tt.level)
			l.Debug("debug message")
			l.Info("info message")
			l.Warn("warn message")
			l.Error("error message")

			output := buf.String()
			for _, want := range tt.expectedOutput {
				if !strings.Contains(output, want) {
					t.Errorf("output missing %q:\n%s", want, output)
				}
			}
			for _, unwanted := range tt.notExpected {
				if strings.Contains(output, unwanted) {
					t.Errorf("output contains %q:\n%s", unwanted, output)
				}
			}
		})
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, LogInfo)

	l.WithFields(Fields{"zeta": 1, "alpha": "a"}).WithField("mid", true).Info("compiled %d", 3)

	line := strings.TrimSpace(buf.String())
	if !strings.HasSuffix(line, "[INFO] compiled 3 alpha=a mid=true zeta=1") {
		t.Errorf("line = %q, want sorted fields", line)
	}
}

func TestDerivedLoggerSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(&buf, LogInfo)
	child := parent.WithField("k", "v")

	parent.SetLevel(LogDebug)
	if !child.IsDebugMode() {
		t.Error("child logger did not follow the parent level")
	}
	child.Debug("from child")
	if !strings.Contains(buf.String(), "from child k=v") {
		t.Errorf("output = %q", buf.String())
	}

	// fields added to the child never reach the parent
	buf.Reset()
	parent.Info("plain")
	if strings.Contains(buf.String(), "k=v") {
		t.Errorf("parent output = %q, want no child fields", buf.String())
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LogDebug,
		"INFO":    LogInfo,
		" warn ":  LogWarn,
		"warning": LogWarn,
		"error":   LogError,
		"off":     LogOff,
		"chatty":  LogInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestUpdateLoggerFromConfig(t *testing.T) {
	originalConfig := GetGlobalConfig()
	originalLogger := GetLogger()
	defer func() {
		SetGlobalConfig(originalConfig)
		SetLogger(originalLogger)
	}()

	var buf bytes.Buffer
	SetLogger(NewLogger(&buf, LogInfo))

	config := DefaultConfig()
	config.LogLevel = "debug"
	SetGlobalConfig(config)

	if !GetLogger().IsDebugMode() {
		t.Fatal("global logger not switched to debug")
	}

	tmpl, err := Compile("<%= x %>")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if _, err := tmpl.Render(map[string]interface{}{"x": 1}); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(buf.String(), "Assembled routine") || !strings.Contains(buf.String(), "Rendering template") {
		t.Errorf("debug output = %q", buf.String())
	}
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	c, err := parse()
	require.NoError(t, err)

	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "memory", c.Database.Type)
	assert.Equal(t, "gemini", c.AI.Provider)
	assert.Equal(t, "gemini-1.5-flash", c.AI.Model)
	assert.Equal(t, 12*time.Second, c.AI.Timeout)
	assert.Equal(t, 300, c.Chat.MaxInputChars)
	assert.Equal(t, "memory", c.Session.Store)
	assert.Equal(t, time.Duration(0), c.Session.TTL)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, c.Security.AllowedOrigins)
	assert.False(t, c.AIEnabled())
}

func TestParse_GeminiKeyFallback(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("GOOGLE_API_KEY", "g-key")

	c, err := parse()
	require.NoError(t, err)

	assert.Equal(t, "g-key", c.AI.APIKey)
	assert.True(t, c.AIEnabled())
}

func TestParse_OpenAIModelDefault(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("AI_PROVIDER", "openai")
	t.Setenv("AI_API_KEY", "sk-test")

	c, err := parse()
	require.NoError(t, err)
	assert.Equal(t, "gpt-3.5-turbo", c.AI.Model)
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing jwt secret", map[string]string{}},
		{"unknown db type", map[string]string{"JWT_SECRET": "s", "DB_TYPE": "postgresql"}},
		{"unknown provider", map[string]string{"JWT_SECRET": "s", "AI_PROVIDER": "claude"}},
		{"unknown session store", map[string]string{"JWT_SECRET": "s", "SESSION_STORE": "disk"}},
		{"bad timezone", map[string]string{"JWT_SECRET": "s", "APP_TIMEZONE": "Mars/Olympus"}},
		{"zero input cap", map[string]string{"JWT_SECRET": "s", "MAX_INPUT_CHARS": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := parse()
			assert.Error(t, err)
		})
	}
}

func TestBuildDatabaseURI(t *testing.T) {
	c := &Config{Database: DatabaseConfig{
		Type: "mongodb",
		Host: "db",
		Port: "27017",
		Name: "medicose",
	}}
	assert.Equal(t, "mongodb://db:27017/medicose", c.BuildDatabaseURI())

	c.Database.Username = "app"
	c.Database.Password = "pw"
	assert.Equal(t, "mongodb://app:pw@db:27017/medicose", c.BuildDatabaseURI())

	c.Database.URI = "mongodb+srv://cluster/medicose"
	assert.Equal(t, "mongodb+srv://cluster/medicose", c.BuildDatabaseURI())

	memory := &Config{Database: DatabaseConfig{Type: "memory"}}
	assert.Empty(t, memory.BuildDatabaseURI())
}

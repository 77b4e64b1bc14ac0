package provider

import (
	"testing"
)

func TestNewProvider(t *testing.T) {
	client := &mockHTTPClient{}

	tests := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  bool
	}{
		{"sendgrid", Config{Type: "sendgrid", APIKey: "k"}, "sendgrid", false},
		{"resend", Config{Type: "resend", APIKey: "k"}, "resend", false},
		{"unsupported type", Config{Type: "mailchimp", APIKey: "k"}, "", true},
		{"missing type", Config{APIKey: "k"}, "", true},
		{"missing api key", Config{Type: "sendgrid"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.cfg, client)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewProvider failed: %v", err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("expected name %s, got %s", tt.wantName, p.Name())
			}
		})
	}
}

func TestRegistry_RegisterGet(t *testing.T) {
	reg := NewRegistry()
	sg := NewSendGrid(Config{Type: "sendgrid", APIKey: "k"}, &mockHTTPClient{})
	reg.Register(sg)

	got, err := reg.Get("sendgrid")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != Provider(sg) {
		t.Error("expected registry to return the registered instance")
	}

	if _, err := reg.Get("resend"); err == nil {
		t.Error("expected error for unregistered provider")
	}
	if !reg.Has("sendgrid") || reg.Has("resend") {
		t.Error("Has reported wrong membership")
	}
}

func TestRegistry_OptionalCapabilities(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewSendGrid(Config{Type: "sendgrid", APIKey: "k"}, &mockHTTPClient{}))
	relay, err := NewSMTPRelay("relay.internal:25")
	if err != nil {
		t.Fatalf("NewSMTPRelay failed: %v", err)
	}
	reg.Register(relay)

	sg, _ := reg.Get("sendgrid")
	if _, ok := sg.(StatsReader); !ok {
		t.Error("expected sendgrid to implement StatsReader")
	}
	if _, ok := sg.(ContactManager); !ok {
		t.Error("expected sendgrid to implement ContactManager")
	}

	rl, _ := reg.Get("smtp")
	if _, ok := rl.(StatsReader); ok {
		t.Error("expected smtp relay to not implement StatsReader")
	}
}

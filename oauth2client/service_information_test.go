package oauth2client

import (
	"errors"
	"testing"
)

func TestServiceInformation_Validate(t *testing.T) {
	tests := []struct {
		name    string
		info    ServiceInformation
		wantErr bool
	}{
		{
			name: "complete configuration",
			info: ServiceInformation{
				TokenURL:     "https://auth.example.com/oauth/token",
				ClientID:     "client",
				ClientSecret: "secret",
			},
			wantErr: false,
		},
		{
			name: "public client without secret",
			info: ServiceInformation{
				TokenURL: "https://auth.example.com/oauth/token",
				ClientID: "client",
			},
			wantErr: false,
		},
		{
			name:    "missing token URL",
			info:    ServiceInformation{ClientID: "client"},
			wantErr: true,
		},
		{
			name:    "blank token URL",
			info:    ServiceInformation{TokenURL: "   ", ClientID: "client"},
			wantErr: true,
		},
		{
			name:    "missing client ID",
			info:    ServiceInformation{TokenURL: "https://auth.example.com/oauth/token"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.info.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var configErr *ConfigurationError
				if !errors.As(err, &configErr) {
					t.Errorf("expected ConfigurationError, got %T", err)
				}
			}
		})
	}
}

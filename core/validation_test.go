package core

import (
	"errors"
	"testing"
	"time"
)

func TestValidateTurn(t *testing.T) {
	validTime := time.Now().Add(-1 * time.Hour)
	futureTime := time.Now().Add(1 * time.Hour)

	tests := []struct {
		name    string
		turn    *ConversationTurn
		wantErr error
	}{
		{
			name: "valid user turn",
			turn: &ConversationTurn{
				SessionID: "s1",
				Role:      RoleUser,
				Content:   "What is ROS 2?",
				Timestamp: validTime,
			},
			wantErr: nil,
		},
		{
			name: "assistant turn may be empty",
			turn: &ConversationTurn{
				SessionID: "s1",
				Role:      RoleAssistant,
				Timestamp: validTime,
			},
			wantErr: nil,
		},
		{
			name:    "nil turn",
			turn:    nil,
			wantErr: ErrInvalidTurn,
		},
		{
			name: "missing session",
			turn: &ConversationTurn{
				Role:      RoleUser,
				Content:   "hi",
				Timestamp: validTime,
			},
			wantErr: ErrEmptySessionID,
		},
		{
			name: "empty user content",
			turn: &ConversationTurn{
				SessionID: "s1",
				Role:      RoleUser,
				Timestamp: validTime,
			},
			wantErr: ErrEmptyContent,
		},
		{
			name: "unknown role",
			turn: &ConversationTurn{
				SessionID: "s1",
				Role:      Role("system"),
				Content:   "x",
				Timestamp: validTime,
			},
			wantErr: ErrInvalidRole,
		},
		{
			name: "future timestamp",
			turn: &ConversationTurn{
				SessionID: "s1",
				Role:      RoleUser,
				Content:   "x",
				Timestamp: futureTime,
			},
			wantErr: ErrInvalidTurn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTurn(tt.turn)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateTurn() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateTurn() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateEntry(t *testing.T) {
	if err := ValidateEntry(&IndexEntry{Vector: []float32{1}, Payload: Payload{URL: "u"}}); err != nil {
		t.Errorf("ValidateEntry() error = %v", err)
	}
	if err := ValidateEntry(&IndexEntry{Payload: Payload{URL: "u"}}); !errors.Is(err, ErrEmptyVector) {
		t.Errorf("ValidateEntry() error = %v, want ErrEmptyVector", err)
	}
	if err := ValidateEntry(nil); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("ValidateEntry() error = %v, want ErrInvalidEntry", err)
	}
}

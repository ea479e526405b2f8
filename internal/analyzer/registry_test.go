package analyzer

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry returned nil")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestRegistry_Register(t *testing.T) {
	tests := []struct {
		name     string
		typ      NotifierType
		notifier Notifier
		wantErr  bool
	}{
		{name: "valid notifier", typ: NotifierSNS, notifier: &fakeNotifier{}, wantErr: false},
		{name: "nil notifier", typ: NotifierSNS, notifier: nil, wantErr: true},
		{name: "empty type", typ: "", notifier: &fakeNotifier{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			err := r.Register(tt.typ, tt.notifier)
			if (err != nil) != tt.wantErr {
				t.Errorf("Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()
	n := &fakeNotifier{name: "sns"}
	if err := r.Register(NotifierSNS, n); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got, ok := r.Get(NotifierSNS)
	if !ok {
		t.Error("Get() returned false for registered notifier")
	}
	if got != n {
		t.Error("Get() returned different notifier than registered")
	}

	if _, ok := r.Get(NotifierTelegram); ok {
		t.Error("Get() returned true for non-registered notifier")
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	r := NewRegistry()
	if len(r.List()) != 0 {
		t.Error("List() should return empty slice for empty registry")
	}

	_ = r.Register(NotifierTelegram, &fakeNotifier{})
	_ = r.Register(NotifierSNS, &fakeNotifier{})
	_ = r.Register(NotifierSNS, &fakeNotifier{})

	list := r.List()
	if len(list) != 2 {
		t.Fatalf("List() returned %d items, want 2", len(list))
	}
	if list[0] != NotifierSNS || list[1] != NotifierTelegram {
		t.Errorf("List() = %v, want [sns telegram]", list)
	}
}

func TestRegistry_SendAll(t *testing.T) {
	r := NewRegistry()
	sns := &fakeNotifier{name: "sns"}
	tg := &fakeNotifier{name: "telegram"}
	_ = r.Register(NotifierSNS, sns)
	_ = r.Register(NotifierTelegram, tg)

	if err := r.Send(context.Background(), "subject", "body"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	for _, n := range []*fakeNotifier{sns, tg} {
		if len(n.sent) != 1 || n.sent[0].subject != "subject" || n.sent[0].body != "body" {
			t.Errorf("%s received %+v", n.name, n.sent)
		}
	}
}

func TestRegistry_SendPartialFailure(t *testing.T) {
	r := NewRegistry()
	sns := &fakeNotifier{name: "sns", err: errors.New("throttled")}
	tg := &fakeNotifier{name: "telegram"}
	_ = r.Register(NotifierSNS, sns)
	_ = r.Register(NotifierTelegram, tg)

	err := r.Send(context.Background(), "subject", "body")
	if !errors.Is(err, ErrNotificationDispatch) {
		t.Fatalf("Send() error = %v, want ErrNotificationDispatch", err)
	}
	if !strings.Contains(err.Error(), "sns: throttled") {
		t.Errorf("error should name the failing notifier: %v", err)
	}
	if len(tg.sent) != 1 {
		t.Error("remaining notifiers should still be tried")
	}
}

func TestRegistry_SendEmpty(t *testing.T) {
	err := NewRegistry().Send(context.Background(), "s", "b")
	if !errors.Is(err, ErrNotificationDispatch) {
		t.Errorf("Send() on empty registry = %v, want ErrNotificationDispatch", err)
	}
}

func TestValidNotifierTypes(t *testing.T) {
	types := ValidNotifierTypes()
	if len(types) != 2 {
		t.Errorf("ValidNotifierTypes() returned %d items, want 2", len(types))
	}
}

func TestParseNotifierType(t *testing.T) {
	tests := []struct {
		input   string
		want    NotifierType
		wantErr bool
	}{
		{"sns", NotifierSNS, false},
		{"telegram", NotifierTelegram, false},
		{"email", "", true},
		{"", "", true},
		{"SNS", "", true}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseNotifierType(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseNotifierType(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseNotifierType(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

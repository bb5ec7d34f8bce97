package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"complaint_triage/core/domain"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want domain.Entities
	}{
		{
			name: "order and phone",
			text: "Order #12345 arrived damaged, call me at (555) 123-4567",
			want: domain.Entities{
				domain.EntityOrderNumber: "12345",
				domain.EntityPhoneNumber: "(555) 123-4567",
			},
		},
		{
			name: "order number label",
			text: "Order number: AB991 never shipped",
			want: domain.Entities{domain.EntityOrderNumber: "AB991"},
		},
		{
			name: "bare hash reference needs six chars",
			text: "Tracking #ZX81234 is stuck, ticket #12 too",
			want: domain.Entities{domain.EntityOrderNumber: "ZX81234"},
		},
		{
			name: "ref label",
			text: "See ref: QQ42 from last week",
			want: domain.Entities{domain.EntityOrderNumber: "QQ42"},
		},
		{
			name: "amount with cents",
			text: "I was billed $49.99 twice",
			want: domain.Entities{domain.EntityAmount: "$49.99"},
		},
		{
			name: "amount without cents",
			text: "Charged $150 for a service I never ordered. Unacceptable.",
			want: domain.Entities{domain.EntityAmount: "$150"},
		},
		{
			name: "phone with country code",
			text: "reach me on +1 555.867.5309 please",
			want: domain.Entities{domain.EntityPhoneNumber: "+1 555.867.5309"},
		},
		{
			name: "hashed order number is not a phone",
			text: "Order #5551234567 never arrived",
			want: domain.Entities{domain.EntityOrderNumber: "5551234567"},
		},
		{
			name: "spaced order number is not a phone",
			text: "Order # 5551234567 never arrived",
			want: domain.Entities{domain.EntityOrderNumber: "5551234567"},
		},
		{
			name: "order number and a separate phone",
			text: "Order #5551234567 is late, call 555-987-6543",
			want: domain.Entities{
				domain.EntityOrderNumber: "5551234567",
				domain.EntityPhoneNumber: "555-987-6543",
			},
		},
		{
			name: "account and product",
			text: "Account number: ACC-7781\nProduct: Aero Kettle 2, bought in May",
			want: domain.Entities{
				domain.EntityAccountNumber: "ACC-7781",
				domain.EntityProductName:   "Aero Kettle 2",
			},
		},
		{
			name: "nothing to find",
			text: "Hello, I have a general question about your hours.",
			want: domain.Entities{},
		},
		{
			name: "empty",
			text: "   ",
			want: domain.Entities{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.text))
		})
	}
}

func TestExtractor_FirstPatternWins(t *testing.T) {
	got := New().Extract("order #AAA1 and also order number: BBB2 and ref: CCC3")
	assert.Equal(t, "AAA1", got[domain.EntityOrderNumber])
}

func TestExtractor_EnrichKeepsExisting(t *testing.T) {
	existing := domain.Entities{domain.EntityOrderNumber: "FROM-AI"}
	got := New().Enrich(existing, "Order #12345, refund $20")

	assert.Equal(t, "FROM-AI", got[domain.EntityOrderNumber])
	assert.Equal(t, "$20", got[domain.EntityAmount])
	// input untouched
	assert.Len(t, existing, 1)
}

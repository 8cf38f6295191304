package model

import (
	"fmt"
	"strings"
)

// Condition — состояние экземпляра.
type Condition string

const (
	ConditionExcellent Condition = "excellent"
	ConditionGood      Condition = "good"
	ConditionFair      Condition = "fair"
	ConditionPoor      Condition = "poor"
	// ConditionDamaged допустимо только при возврате
	ConditionDamaged Condition = "damaged"
)

// CopyConditions — состояния, которые можно присвоить экземпляру.
var CopyConditions = []Condition{ConditionExcellent, ConditionGood, ConditionFair, ConditionPoor}

// ReturnConditions — состояния, которые можно указать при возврате.
var ReturnConditions = []Condition{ConditionExcellent, ConditionGood, ConditionFair, ConditionPoor, ConditionDamaged}

// ParseCondition разбирает состояние без учёта регистра ("Good" → good).
func ParseCondition(s string) (Condition, error) {
	c := Condition(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ReturnConditions {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("неизвестное состояние %q", s)
}

// BookCopy — физический экземпляр книги.
type BookCopy struct {
	ID             string    `json:"id"`
	BookID         string    `json:"book_id"`
	BookTitle      string    `json:"book_title"`
	Barcode        string    `json:"barcode"`
	IsAvailable    bool      `json:"is_available"`
	IsDamaged      bool      `json:"is_damaged"`
	Condition      string    `json:"condition"`
	Remarks        string    `json:"remarks,omitempty"`
	Vendor         string    `json:"vendor,omitempty"`
	LastBorrowedAt Timestamp `json:"last_borrowed_at"`
	AddedAt        Timestamp `json:"added_at"`
}

// Lendable сообщает, можно ли показать действие «выдать».
func (c BookCopy) Lendable() bool {
	return c.IsAvailable && !c.IsDamaged
}

// CopyInput — поля формы экземпляра.
type CopyInput struct {
	BookID    string    `json:"book_id" validate:"required"`
	Barcode   string    `json:"barcode" validate:"required,max=64"`
	Condition Condition `json:"condition" validate:"required,oneof=excellent good fair poor"`
	Remarks   string    `json:"remarks,omitempty" validate:"max=500"`
	Vendor    string    `json:"vendor,omitempty" validate:"max=100"`
	IsDamaged bool      `json:"is_damaged"`
}

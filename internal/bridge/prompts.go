package bridge

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	formatSystemPrompt = "You are a helpful financial assistant who can summarize database query results " +
		"into clear, actionable explanations."

	sqlSystemPrompt = "You are a SQL expert. Respond only with valid BigQuery Standard SQL."

	shoppingSystemPrompt = "You are a shopping assistant who suggests personalized products based on purchase history. " +
		"Be friendly, concise, and specific."

	// DefaultInterpretPrompt routes a chat message to an intent.
	DefaultInterpretPrompt = "You are a router for a financial wellness assistant chatbot. Analyze the user's question " +
		"and return a compact JSON object with intent, time range, limit, and params."
)

const (
	maxPromptRows     = 20
	maxPromptHistory  = 20
	maxPromptMerchant = 5
)

var money = message.NewPrinter(language.English)

// formatMoney renders v as dollars with thousands separators.
func formatMoney(v float64) string {
	return money.Sprintf("$%.2f", v)
}

func indentJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func formatResultsPrompt(req FormatRequest) string {
	rows := req.Results
	if len(rows) > maxPromptRows {
		rows = rows[:maxPromptRows]
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	sql := req.SQLQuery
	if sql == "" {
		sql = "unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a helpful financial assistant. A user asked: %q\n", req.UserQuery)
	fmt.Fprintf(&b, "I executed a SQL query (%s) and got %d row(s). Here is a sample:\n\n%s\n\n", sql, len(req.Results), indentJSON(rows))
	b.WriteString("Explain the results in a friendly, conversational tone, highlighting key insights.\n")
	b.WriteString("Format numbers nicely with commas and currency symbols where appropriate.\n")
	b.WriteString("Keep the response to 2-4 sentences.")
	return b.String()
}

func generateSQLPrompt(req SQLRequest) string {
	return fmt.Sprintf("You are a BigQuery SQL expert. Given the schema:\n%s\n\n"+
		"Generate a SQL query for the question: %q\n\n"+
		"Return ONLY the SQL query.", req.Schema, req.Question)
}

func shoppingPrompt(req ShoppingRequest) string {
	history := req.PurchaseHistory
	if len(history) > maxPromptHistory {
		history = history[:maxPromptHistory]
	}
	if history == nil {
		history = []map[string]any{}
	}

	merchants := req.TopMerchants
	if len(merchants) > maxPromptMerchant {
		merchants = merchants[:maxPromptMerchant]
	}
	top := make([]string, 0, len(merchants))
	for _, m := range merchants {
		top = append(top, fmt.Sprintf("%s (%s)", m.Name, formatMoney(m.Total)))
	}

	category := req.Category
	if category == "" {
		category = "general shopping"
	}
	var avg float64
	if req.AveragePurchaseAmount != nil {
		avg = *req.AveragePurchaseAmount
	}
	total := len(req.PurchaseHistory)
	if req.TotalPurchases != nil && *req.TotalPurchases != 0 {
		total = *req.TotalPurchases
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The customer is interested in: %s.\n", category)
	fmt.Fprintf(&b, "Purchase history sample:\n%s\n\n", indentJSON(history))
	fmt.Fprintf(&b, "Favorite merchants: %s\n", strings.Join(req.FavoriteMerchants, ", "))
	fmt.Fprintf(&b, "Top merchants by spending: %s\n", strings.Join(top, ", "))
	fmt.Fprintf(&b, "Average purchase amount: %s\n", formatMoney(avg))
	fmt.Fprintf(&b, "Total recent purchases: %d\n\n", total)
	b.WriteString("Recommend three realistic products (fake is ok) that match the customer's preferences. ")
	b.WriteString("For each recommendation include: product name, price estimate, merchant, short description, ")
	b.WriteString("and why it fits their history.")
	return b.String()
}

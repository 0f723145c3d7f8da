package rules

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ExportVersion is written into export documents. Import accepts any
// document that decodes to rule-shaped objects; stricter versioning is the
// repository layer's concern.
const ExportVersion = 1

// ExportDocument is the backup envelope for a rule set.
type ExportDocument struct {
	Version int     `json:"version"`
	Rules   []*Rule `json:"rules"`
}

// Export collects all rules from the store into a backup document.
func Export(store RuleStore) (*ExportDocument, error) {
	ruleSet, err := store.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return &ExportDocument{Version: ExportVersion, Rules: ruleSet}, nil
}

// Import reads a backup document (either the {version, rules} envelope or a
// bare rule array), validates each rule, and adds them through the engine so
// normal save-time checks apply. When regenerateIDs is set, every imported
// rule and its conditions/actions get fresh IDs, which allows importing the
// same backup twice. Returns the number of rules imported; the first
// validation or store failure aborts the import.
func Import(engine *Engine, data []byte, regenerateIDs bool) (int, error) {
	var doc ExportDocument
	if err := json.Unmarshal(data, &doc); err != nil || doc.Rules == nil {
		// Fall back to a bare array.
		var bare []*Rule
		if arrErr := json.Unmarshal(data, &bare); arrErr != nil {
			return 0, fmt.Errorf("invalid import document: %w", arrErr)
		}
		doc.Rules = bare
	}

	imported := 0
	for _, rule := range doc.Rules {
		if rule == nil {
			continue
		}
		if regenerateIDs || rule.ID == "" {
			rule.ID = uuid.NewString()
			for i := range rule.Conditions {
				rule.Conditions[i].ID = uuid.NewString()
			}
			for i := range rule.Actions {
				rule.Actions[i].ID = uuid.NewString()
			}
		}
		if err := engine.AddRule(rule); err != nil {
			return imported, fmt.Errorf("failed to import rule %q: %w", rule.Name, err)
		}
		imported++
	}

	return imported, nil
}

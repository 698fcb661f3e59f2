package agents

import "encoding/json"

// contextualizedSchema mirrors domain.ContextualizedContract without offsets.
var contextualizedSchema = json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "required": ["original_contract_text", "amendment_text", "section_correspondences"],
  "properties": {
    "original_contract_text": {"type": "string"},
    "amendment_text": {"type": "string"},
    "section_correspondences": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["original_section", "amendment_section", "change_type"],
        "properties": {
          "original_section": {"type": "string"},
          "amendment_section": {"type": "string"},
          "change_type": {"type": "string", "enum": ["modified", "added", "removed"]}
        }
      }
    }
  }
}`)

// summarySchema mirrors domain.ContractChangeSummary.
var summarySchema = json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "required": ["topics_touched", "sections_changed", "summary_of_the_change"],
  "properties": {
    "topics_touched": {"type": "array", "items": {"type": "string"}},
    "sections_changed": {"type": "array", "items": {"type": "string"}},
    "summary_of_the_change": {"type": "string"}
  }
}`)

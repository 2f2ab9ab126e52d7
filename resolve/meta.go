package resolve

import "github.com/syssam/strata/schema"

// MetaFieldset is the fieldset meta-fields are grouped under.
const MetaFieldset = "meta"

type metaField struct {
	name     string
	def      *schema.PropertyDef
	nodeOnly bool
}

func meta(typ, label, description string) *schema.PropertyDef {
	return &schema.PropertyDef{
		Type:          typ,
		Label:         label,
		Description:   description,
		Fieldset:      MetaFieldset,
		AutoPopulated: true,
	}
}

// metaFields are the audit properties injected by IncludeMetaFields.
// Locked fields only make sense on nodes and are skipped on edges.
var metaFields = []metaField{
	{name: "_createdByClient", def: meta("String", "Created by client", "The client that was used to make the creation")},
	{name: "_createdByUser", def: meta("String", "Created by user", "The user that made the creation")},
	{name: "_createdTimestamp", def: meta("DateTime", "Created timestamp", "The time and date this record was created")},
	{name: "_updatedByClient", def: meta("String", "Updated by client", "The last client to make an update")},
	{name: "_updatedByUser", def: meta("String", "Updated by user", "The last user to make an update")},
	{name: "_updatedTimestamp", def: meta("DateTime", "Updated timestamp", "The time and date this record was last updated")},
	{name: "_lockedFields", def: meta("String", "List of locked fields", "Autopopulated fields that are uneditable"), nodeOnly: true},
}

// IsMetaFieldName reports whether name is one of the injected audit fields.
func IsMetaFieldName(name string) bool {
	for _, m := range metaFields {
		if m.name == name {
			return true
		}
	}
	return false
}

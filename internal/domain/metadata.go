package domain

// AttributeType enumerates the comparison operators Discord applies to a
// role-connection metadata field.
type AttributeType int

const (
	AttributeNumberLessThan AttributeType = iota + 1
	AttributeNumberGreaterThan
	AttributeNumberEqual
	AttributeNumberNotEqual
	AttributeDatetimeLessThan
	AttributeDatetimeGreaterThan
	AttributeBoolEqual
	AttributeBoolNotEqual
)

// SchemaField declares one metadata field in the role-connection schema
// registered against the application.
type SchemaField struct {
	Key         string        `json:"key"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Type        AttributeType `json:"type"`
}

// Metadata is the key/value document pushed to the chat platform. Values are
// stringly typed on the wire; Discord coerces them per the registered field
// type.
type Metadata map[string]any

// RoleConnection is the currently registered role-connection document for a
// user, as returned by the provider.
type RoleConnection struct {
	PlatformName     string   `json:"platform_name"`
	PlatformUsername string   `json:"platform_username,omitempty"`
	Metadata         Metadata `json:"metadata"`
}

package storage

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	tablePolicies    = "guild_policies"
	tableAudits      = "audit_records"
	tableCheckpoints = "stream_checkpoints"
)

var (
	// GuildPoliciesColumns holds the columns for the "guild_policies" table.
	GuildPoliciesColumns = []*schema.Column{
		{Name: "guild_id", Type: field.TypeString, Unique: true},
		{Name: "document", Type: field.TypeBytes},
		{Name: "updated_at_ns", Type: field.TypeInt64},
	}
	// GuildPoliciesTable holds the schema information for the "guild_policies" table.
	GuildPoliciesTable = &schema.Table{
		Name:       tablePolicies,
		Columns:    GuildPoliciesColumns,
		PrimaryKey: []*schema.Column{GuildPoliciesColumns[0]},
	}

	// AuditRecordsColumns holds the columns for the "audit_records" table.
	AuditRecordsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID, Unique: true},
		{Name: "timestamp_ns", Type: field.TypeInt64},
		{Name: "guild_id", Type: field.TypeString},
		{Name: "member_id", Type: field.TypeString},
		{Name: "username", Type: field.TypeString, Default: ""},
		{Name: "verdict", Type: field.TypeString},
		{Name: "check_key", Type: field.TypeString, Default: ""},
		{Name: "reason", Type: field.TypeString, Default: ""},
		{Name: "reports", Type: field.TypeString, Default: ""},
		{Name: "policy_digest", Type: field.TypeString, Default: ""},
		{Name: "action", Type: field.TypeString},
		{Name: "result", Type: field.TypeString},
		{Name: "error_message", Type: field.TypeString, Default: ""},
	}
	// AuditRecordsTable holds the schema information for the "audit_records" table.
	AuditRecordsTable = &schema.Table{
		Name:       tableAudits,
		Columns:    AuditRecordsColumns,
		PrimaryKey: []*schema.Column{AuditRecordsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "auditrecord_timestamp_ns",
				Unique:  false,
				Columns: []*schema.Column{AuditRecordsColumns[1]},
			},
			{
				Name:    "auditrecord_guild_id_timestamp_ns",
				Unique:  false,
				Columns: []*schema.Column{AuditRecordsColumns[2], AuditRecordsColumns[1]},
			},
		},
	}

	// StreamCheckpointsColumns holds the columns for the "stream_checkpoints" table.
	StreamCheckpointsColumns = []*schema.Column{
		{Name: "target_name", Type: field.TypeString, Unique: true},
		{Name: "last_synced_at_ns", Type: field.TypeInt64},
		{Name: "last_record_id", Type: field.TypeString, Default: ""},
	}
	// StreamCheckpointsTable holds the schema information for the "stream_checkpoints" table.
	StreamCheckpointsTable = &schema.Table{
		Name:       tableCheckpoints,
		Columns:    StreamCheckpointsColumns,
		PrimaryKey: []*schema.Column{StreamCheckpointsColumns[0]},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		GuildPoliciesTable,
		AuditRecordsTable,
		StreamCheckpointsTable,
	}
)

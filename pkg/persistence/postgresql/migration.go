package postgresql

import "github.com/quasarerp/automations/pkg/persistence/sqlbase"

func migrations() []sqlbase.Migration {
	return []sqlbase.Migration{
		{Version: 1, Name: "create_workflows_and_leads", SQL: `
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				active BOOLEAN NOT NULL DEFAULT false,
				trigger VARCHAR(100) NOT NULL,
				graph JSONB,
				steps JSONB,
				stats_processed INTEGER NOT NULL DEFAULT 0,
				stats_converted INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_trigger_active ON workflows(trigger, active);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);

			CREATE TABLE leads (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL DEFAULT '',
				company VARCHAR(255) NOT NULL DEFAULT '',
				website TEXT NOT NULL DEFAULT '',
				email VARCHAR(255) NOT NULL DEFAULT '',
				enriched_data JSONB,
				automation_status VARCHAR(50) NOT NULL DEFAULT '',
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);
		`},
		{Version: 2, Name: "create_workflow_instances", SQL: `
			CREATE TABLE workflow_instances (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id),
				lead_id VARCHAR(255) NOT NULL,
				status VARCHAR(20) NOT NULL
					CHECK (status IN ('RUNNING', 'WAITING', 'PAUSED', 'COMPLETED', 'FAILED')),
				current_node_id VARCHAR(255) NOT NULL DEFAULT '',
				current_step_index INTEGER,
				last_thread_id VARCHAR(255) NOT NULL DEFAULT '',
				next_run TIMESTAMP WITH TIME ZONE,
				logs JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				CONSTRAINT uq_workflow_instances_workflow_lead UNIQUE (workflow_id, lead_id)
			);

			CREATE INDEX idx_workflow_instances_status_next_run ON workflow_instances(status, next_run);
			CREATE INDEX idx_workflow_instances_lead_id ON workflow_instances(lead_id);
		`},
		{Version: 3, Name: "add_workflow_instance_lease", SQL: `
			ALTER TABLE workflow_instances ADD COLUMN lease_until TIMESTAMP WITH TIME ZONE;
		`},
	}
}

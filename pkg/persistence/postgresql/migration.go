package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE flows (
				id VARCHAR(255) PRIMARY KEY,
				account_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				nodes JSONB NOT NULL DEFAULT '[]',
				edges JSONB NOT NULL DEFAULT '[]',
				is_active BOOLEAN NOT NULL DEFAULT false,
				trigger_count INT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_flows_account_active ON flows(account_id, is_active);

			CREATE TABLE executions (
				id VARCHAR(255) PRIMARY KEY,
				flow_id VARCHAR(255) NOT NULL,
				account_id VARCHAR(255) NOT NULL,
				sender_id VARCHAR(255) NOT NULL,
				sender_username VARCHAR(255),
				current_node_id VARCHAR(255),
				previous_node_ids JSONB NOT NULL DEFAULT '[]',
				status VARCHAR(50) NOT NULL CHECK (status IN ('active', 'waiting', 'completed', 'failed', 'paused')),
				context JSONB NOT NULL DEFAULT '{}',
				scheduled_at TIMESTAMP WITH TIME ZONE,
				scheduled_node_id VARCHAR(255),
				last_error TEXT,
				revision INT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_executions_flow_status ON executions(flow_id, status);
			CREATE INDEX idx_executions_sender ON executions(account_id, sender_id, status);

			CREATE TABLE scheduled_executions (
				id VARCHAR(255) PRIMARY KEY,
				execution_id VARCHAR(255) NOT NULL,
				flow_id VARCHAR(255) NOT NULL,
				account_id VARCHAR(255) NOT NULL,
				node_id VARCHAR(255) NOT NULL,
				execute_at TIMESTAMP WITH TIME ZONE NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_scheduled_executions_due ON scheduled_executions(status, execute_at);

			CREATE TABLE accounts (
				id VARCHAR(255) PRIMARY KEY,
				platform_user_id VARCHAR(255) NOT NULL,
				username VARCHAR(255),
				personality_prompt TEXT,
				business_context TEXT,
				ai_enabled BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE leads (
				id VARCHAR(255) PRIMARY KEY,
				account_id VARCHAR(255) NOT NULL,
				sender_id VARCHAR(255) NOT NULL,
				username VARCHAR(255),
				name VARCHAR(255),
				email VARCHAR(255),
				phone VARCHAR(64),
				tags JSONB NOT NULL DEFAULT '[]',
				flow_id VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (account_id, sender_id)
			);
		`,
	}
}

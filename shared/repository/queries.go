package repository

// SQL text shared across stores. Grouped here the way the teacher groups
// InsertUserQuery/SelectUserByIDQuery/... as package-level consts rather
// than building query strings at call time.
const (
	InsertTenantQuery = `
		INSERT INTO tenants (id, name, owner_user_id, plan, max_agents, max_credentials, max_monthly_reads, created_at, updated_at)
		VALUES (:id, :name, :owner_user_id, :plan, :max_agents, :max_credentials, :max_monthly_reads, :created_at, :updated_at)`

	UpdateTenantOwnerQuery = `UPDATE tenants SET owner_user_id = $1, updated_at = now() WHERE id = $2`

	SelectTenantByIDQuery = `SELECT * FROM tenants WHERE id = $1 AND deleted_at IS NULL`

	SelectTenantByNameQuery = `SELECT * FROM tenants WHERE lower(name) = lower($1) AND deleted_at IS NULL`

	InsertUserQuery = `
		INSERT INTO users (id, email, password_hash, tenant_id, role, active, created_at, updated_at)
		VALUES (:id, :email, :password_hash, :tenant_id, :role, :active, :created_at, :updated_at)`

	SelectUserByIDQuery = `SELECT * FROM users WHERE id = $1 AND deleted_at IS NULL`

	SelectUserByEmailQuery = `SELECT * FROM users WHERE lower(email) = lower($1) AND deleted_at IS NULL`

	UpdateUserLastLoginQuery = `UPDATE users SET last_login_at = now(), updated_at = now() WHERE id = $1`

	InsertAgentQuery = `
		INSERT INTO agents (id, tenant_id, name, status, current_key_hash, usage_count, created_by, created_at, updated_at)
		VALUES (:id, :tenant_id, :name, :status, :current_key_hash, :usage_count, :created_by, :created_at, :updated_at)`

	SelectAgentByIDQuery = `SELECT * FROM agents WHERE id = $1 AND deleted_at IS NULL`

	SelectAgentByNameQuery = `SELECT * FROM agents WHERE tenant_id = $1 AND name = $2 AND deleted_at IS NULL`

	CountLiveAgentsByTenantQuery = `SELECT count(*) FROM agents WHERE tenant_id = $1 AND deleted_at IS NULL`

	UpdateAgentLastUsedQuery = `UPDATE agents SET last_used_at = now(), usage_count = usage_count + 1, updated_at = now() WHERE id = $1`

	SoftDeleteAgentQuery = `UPDATE agents SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`

	InsertAgentAPIKeyQuery = `
		INSERT INTO agent_api_keys (id, agent_id, key_hash, status, created_at)
		VALUES (:id, :agent_id, :key_hash, :status, :created_at)`

	SelectAgentByAPIKeyHashQuery = `
		SELECT a.* FROM agents a
		JOIN agent_api_keys k ON k.agent_id = a.id
		WHERE k.key_hash = $1 AND k.status = 'active' AND a.deleted_at IS NULL AND a.status = 'active'`

	ListAPIKeysForAgentQuery = `SELECT * FROM agent_api_keys WHERE agent_id = $1 ORDER BY created_at DESC`

	RevokeAllAPIKeysForAgentQuery = `UPDATE agent_api_keys SET status = 'revoked', revoked_at = now() WHERE agent_id = $1 AND status = 'active'`

	InsertCredentialQuery = `
		INSERT INTO credentials (id, agent_id, tenant_id, name, type, description, encrypted_value, active, rotation_enabled, rotation_interval_days, next_rotation_due, created_by, created_at, updated_at)
		VALUES (:id, :agent_id, :tenant_id, :name, :type, :description, :encrypted_value, :active, :rotation_enabled, :rotation_interval_days, :next_rotation_due, :created_by, :created_at, :updated_at)`

	SelectCredentialByIDQuery = `SELECT * FROM credentials WHERE id = $1 AND deleted_at IS NULL`

	SelectCredentialByNameQuery = `SELECT * FROM credentials WHERE agent_id = $1 AND name = $2 AND deleted_at IS NULL`

	ListCredentialsByAgentQuery = `
		SELECT * FROM credentials WHERE agent_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	CountLiveCredentialsByTenantQuery = `
		SELECT count(*) FROM credentials c
		JOIN agents a ON a.id = c.agent_id
		WHERE a.tenant_id = $1 AND c.deleted_at IS NULL`

	UpdateCredentialLastAccessedQuery = `UPDATE credentials SET last_accessed_at = now() WHERE id = $1`

	UpdateCredentialMetadataQuery = `
		UPDATE credentials SET description = $2, rotation_enabled = $3, rotation_interval_days = $4, next_rotation_due = $5, updated_at = now()
		WHERE id = $1`

	UpdateCredentialAfterRotationQuery = `
		UPDATE credentials SET encrypted_value = $2, last_rotated_at = now(), next_rotation_due = $3, updated_at = now()
		WHERE id = $1`

	SoftDeleteCredentialQuery = `UPDATE credentials SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`

	InsertCredentialVersionQuery = `
		INSERT INTO credential_versions (id, credential_id, version, encrypted_value, status, created_at)
		VALUES (:id, :credential_id, :version, :encrypted_value, :status, :created_at)`

	SupersedeActiveVersionQuery = `
		UPDATE credential_versions SET status = 'superseded', expired_at = now()
		WHERE credential_id = $1 AND status = 'active'`

	SelectMaxVersionQuery = `SELECT coalesce(max(version), 0) FROM credential_versions WHERE credential_id = $1`

	ListVersionsByCredentialQuery = `
		SELECT * FROM credential_versions WHERE credential_id = $1 ORDER BY version DESC`

	InsertEphemeralTokenQuery = `
		INSERT INTO ephemeral_tokens (id, jti, agent_id, credential_id, tenant_id, signature_prefix, status, expires_at, created_at)
		VALUES (:id, :jti, :agent_id, :credential_id, :tenant_id, :signature_prefix, :status, :expires_at, :created_at)`

	SelectEphemeralTokenByJtiQuery = `SELECT * FROM ephemeral_tokens WHERE jti = $1`

	RevokeEphemeralTokenQuery = `UPDATE ephemeral_tokens SET status = 'revoked', revoked_at = now() WHERE jti = $1 AND status != 'revoked'`

	SweepExpiredEphemeralTokensQuery = `UPDATE ephemeral_tokens SET status = 'expired' WHERE status = 'active' AND expires_at < now()`

	InsertAuditEventQuery = `
		INSERT INTO audit_events (id, tenant_id, actor_user_id, kind, target_kind, target_id, description, source_ip, created_at)
		VALUES (:id, :tenant_id, :actor_user_id, :kind, :target_kind, :target_id, :description, :source_ip, :created_at)`

	SelectAuditEventByIDQuery = `SELECT * FROM audit_events WHERE id = $1 AND tenant_id = $2`

	ListAuditEventsByTenantQuery = `
		SELECT * FROM audit_events WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	SelectQuotaRowQuery = `SELECT * FROM agent_quotas WHERE agent_id = $1 AND month_year = $2`

	InsertQuotaRowQuery = `
		INSERT INTO agent_quotas (agent_id, tenant_id, month_year, api_calls_used, api_calls_limit, key_rotations_used, key_rotations_limit, created_at, updated_at)
		VALUES (:agent_id, :tenant_id, :month_year, 0, :api_calls_limit, 0, :key_rotations_limit, :created_at, :updated_at)`

	IncrementAPICallsQuery = `
		UPDATE agent_quotas SET api_calls_used = api_calls_used + 1, updated_at = now()
		WHERE agent_id = $1 AND month_year = $2`

	IncrementRotationsQuery = `
		UPDATE agent_quotas SET key_rotations_used = key_rotations_used + 1, updated_at = now()
		WHERE agent_id = $1 AND month_year = $2`

	InsertPasswordResetTokenQuery = `
		INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at, used, created_at)
		VALUES (:id, :user_id, :token_hash, :expires_at, :used, :created_at)`

	SelectPasswordResetTokenQuery = `SELECT * FROM password_reset_tokens WHERE token_hash = $1`

	MarkPasswordResetTokenUsedQuery = `UPDATE password_reset_tokens SET used = true, used_at = now() WHERE id = $1`

	UpdateUserPasswordQuery = `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`
)

package openapi

// RecordFields — тело регистрации записи и полной замены метаданных.
type RecordFields struct {
	Name       string   `json:"name"`
	Size       int64    `json:"size"`
	Details    string   `json:"details"`
	Categories []string `json:"categories"`
}

// Record — представление записи в API.
type Record struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	Creator       string   `json:"creator"`
	Size          int64    `json:"size"`
	Details       string   `json:"details"`
	Categories    []string `json:"categories"`
	CreatedHeight int64    `json:"created_height"`
	UpdatedHeight int64    `json:"updated_height"`
}

// RecordList — страница записей.
type RecordList struct {
	Items  []Record `json:"items"`
	Total  int      `json:"total"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}

// ListRecordsParams — параметры GET /api/v1/records.
type ListRecordsParams struct {
	Creator  *string `form:"creator,omitempty" json:"creator,omitempty"`
	Category *string `form:"category,omitempty" json:"category,omitempty"`
	Limit    *int    `form:"limit,omitempty" json:"limit,omitempty"`
	Offset   *int    `form:"offset,omitempty" json:"offset,omitempty"`
}

// OwnerChange — тело прямой передачи владения.
type OwnerChange struct {
	NewOwner string `json:"new_owner"`
}

// CheckAccessParams — параметры GET /api/v1/records/{id}/access.
type CheckAccessParams struct {
	Level       string  `form:"level" json:"level"`
	Participant *string `form:"participant,omitempty" json:"participant,omitempty"`
}

// AccessCheck — результат проверки уровня доступа.
type AccessCheck struct {
	RecordID    int64  `json:"record_id"`
	Participant string `json:"participant"`
	Level       string `json:"level"`
	HasAccess   bool   `json:"has_access"`
}

// PermissionGrant — тело выдачи градуированного права.
type PermissionGrant struct {
	Level string `json:"level"`
}

// Permission — градуированное право участника.
type Permission struct {
	RecordID      int64  `json:"record_id"`
	Participant   string `json:"participant"`
	Level         string `json:"level"`
	GrantedBy     string `json:"granted_by"`
	GrantedHeight int64  `json:"granted_height"`
}

type PermissionList struct {
	Items []Permission `json:"items"`
}

// Viewer — привилегия просмотра.
type Viewer struct {
	RecordID      int64  `json:"record_id"`
	Observer      string `json:"observer"`
	CanView       bool   `json:"can_view"`
	GrantedBy     string `json:"granted_by"`
	GrantedHeight int64  `json:"granted_height"`
}

type ViewerList struct {
	Items []Viewer `json:"items"`
}

// AttestationRequest — тело аттестации. Replace разрешает перезапись.
type AttestationRequest struct {
	Hash    string `json:"hash"`
	Method  string `json:"method"`
	Replace *bool  `json:"replace,omitempty"`
}

// Attestation — аттестация подлинности записи.
type Attestation struct {
	RecordID       int64  `json:"record_id"`
	Hash           string `json:"hash"`
	Method         string `json:"method"`
	Attestor       string `json:"attestor"`
	AttestedHeight int64  `json:"attested_height"`
}

type VerifyRequest struct {
	Hash string `json:"hash"`
}

type VerifyResult struct {
	RecordID int64 `json:"record_id"`
	Valid    bool  `json:"valid"`
}

// TransferRequest — тело планирования передачи.
type TransferRequest struct {
	NewOwner         string `json:"new_owner"`
	VerificationHash string `json:"verification_hash"`
}

// ExecuteRequest — тело исполнения передачи.
type ExecuteRequest struct {
	VerificationHash string `json:"verification_hash"`
}

// Operation — отложенная операция. Хеш проверки наружу не отдаётся.
type Operation struct {
	Seq             int64   `json:"seq"`
	RecordID        int64   `json:"record_id"`
	Kind            string  `json:"kind"`
	Requester       string  `json:"requester"`
	Recipient       *string `json:"recipient,omitempty"`
	RequestedHeight int64   `json:"requested_height"`
	ExpiresHeight   int64   `json:"expires_height"`
	Status          string  `json:"status"`
	ResolvedBy      *string `json:"resolved_by,omitempty"`
	ResolvedHeight  *int64  `json:"resolved_height,omitempty"`
}

type OperationList struct {
	Items []Operation `json:"items"`
}

type PauseRequest struct {
	Reason *string `json:"reason,omitempty"`
}

// RateLimitSettings — новые пороги rate limiter.
type RateLimitSettings struct {
	Window int64 `json:"window"`
	Max    int   `json:"max"`
}

// ProtocolState — глобальное состояние протокола.
type ProtocolState struct {
	Paused        bool    `json:"paused"`
	PauseReason   *string `json:"pause_reason,omitempty"`
	PausedBy      *string `json:"paused_by,omitempty"`
	PausedHeight  *int64  `json:"paused_height,omitempty"`
	RateWindow    int64   `json:"rate_window"`
	RateMax       int     `json:"rate_max"`
	UpdatedHeight int64   `json:"updated_height"`
}

// QuotaStatus — квота актора на текущей высоте.
type QuotaStatus struct {
	Actor      string `json:"actor"`
	Height     int64  `json:"height"`
	LastHeight int64  `json:"last_height"`
	CallCount  int    `json:"call_count"`
	Remaining  int    `json:"remaining"`
	Window     int64  `json:"window"`
	Max        int    `json:"max"`
}

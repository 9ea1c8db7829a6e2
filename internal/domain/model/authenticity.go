package model

// AuthenticityRecord — аттестация подлинности записи.
// Не более одной на запись. Хранится в таблице attestations.
type AuthenticityRecord struct {
	RecordID int64
	// Hash — непрозрачное значение хеша, сравнивается только на равенство
	Hash string
	// Method — алгоритм (sha256, keccak256)
	Method string
	// Attestor — кто выполнил аттестацию
	Attestor string
	// AttestedHeight — высота аттестации
	AttestedHeight int64
}

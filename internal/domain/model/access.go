package model

// ViewerPrivilege — булев признак права просмотра записи наблюдателем.
// Хранится в таблице viewer_privileges, ключ (record_id, observer).
type ViewerPrivilege struct {
	RecordID int64
	Observer string
	CanView  bool
	// GrantedBy — кто выдал привилегию
	GrantedBy string
	// GrantedHeight — высота выдачи
	GrantedHeight int64
}

// GranularPermission — градуированное право участника на запись.
// Хранится в таблице granular_permissions, ключ (record_id, participant).
type GranularPermission struct {
	RecordID    int64
	Participant string
	// Level — уровень доступа (0 none, 1 view, 2 edit, 3 manage)
	Level int
	// GrantedBy — создатель записи на момент выдачи
	GrantedBy string
	// GrantedHeight — высота выдачи
	GrantedHeight int64
}

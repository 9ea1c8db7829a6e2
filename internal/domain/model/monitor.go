package model

// TransactionMonitor — счётчик изменяющих вызовов актора в текущем окне.
// Хранится в таблице transaction_monitors.
type TransactionMonitor struct {
	Actor string
	// LastHeight — высота последнего разрешённого вызова
	LastHeight int64
	// CallCount — количество вызовов в текущем окне
	CallCount int
}

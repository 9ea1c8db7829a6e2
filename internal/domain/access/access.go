// Пакет access — уровни доступа к записи и правила их проверки.
// Уровни упорядочены: none < view < edit < manage.
// Создатель записи неявно имеет уровень manage и не проверяется по таблице прав.
package access

import (
	"fmt"
	"strings"
)

// Level — уровень доступа участника к записи.
type Level int

// Уровни в порядке возрастания привилегий.
const (
	LevelNone   Level = 0
	LevelView   Level = 1
	LevelEdit   Level = 2
	LevelManage Level = 3
)

// levelNames — имена уровней для API и логов.
var levelNames = map[Level]string{
	LevelNone:   "none",
	LevelView:   "view",
	LevelEdit:   "edit",
	LevelManage: "manage",
}

// String возвращает имя уровня.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// IsValid проверяет, что уровень входит в диапазон none..manage.
func (l Level) IsValid() bool {
	return l >= LevelNone && l <= LevelManage
}

// AtLeast сообщает, что уровень l не ниже required.
func (l Level) AtLeast(required Level) bool {
	return l >= required
}

// ParseLevel разбирает имя уровня (none, view, edit, manage) без учёта регистра.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for l, n := range levelNames {
		if n == name {
			return l, nil
		}
	}
	return LevelNone, fmt.Errorf("недопустимый уровень %q, допустимые: none, view, edit, manage", s)
}

// Grant — запись таблицы градуированных прав, как её видит движок проверки.
type Grant struct {
	Level Level
}

// HasAccess решает, имеет ли actor уровень не ниже required на запись creator.
// Создатель проходит всегда. Остальные — только по записи в таблице прав;
// отсутствие записи означает отказ. Привилегия просмотра здесь не учитывается.
func HasAccess(creator, actor string, grant *Grant, required Level) bool {
	if actor == creator {
		return true
	}
	if grant == nil {
		return false
	}
	return grant.Level.AtLeast(required)
}

// CanView решает, может ли actor читать закрытые данные записи.
// Градуированное право, если оно есть, имеет приоритет над привилегией просмотра:
// явная запись с уровнем none запрещает чтение даже при выданном флаге.
func CanView(creator, actor string, grant *Grant, viewer bool) bool {
	if actor == creator {
		return true
	}
	if grant != nil {
		return grant.Level.AtLeast(LevelView)
	}
	return viewer
}

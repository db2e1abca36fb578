package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.MustParse("pt-BR")

	// Map notices
	message.SetString(lang, "notice.map_paused", "A mesa está pausada; somente o mestre pode fazer mudanças agora.")
	message.SetString(lang, "notice.save_failed", "Sua alteração não pôde ser salva. Tente novamente.")
	message.SetString(lang, "notice.load_failed", "O mapa não pôde ser carregado.")
	message.SetString(lang, "notice.not_permitted", "Você não tem permissão para fazer isso nesta mesa.")
	message.SetString(lang, "notice.not_drawer", "Outro jogador está com a caneta agora.")
	message.SetString(lang, "notice.grant_expired", "Sua sessão nesta mesa expirou. Entre novamente para continuar.")

	// Error codes
	message.SetString(lang, "error.STROKE_TOO_SHORT", "Um desenho precisa de pelo menos dois pontos.")
	message.SetString(lang, "error.TOKEN_NOT_FOUND", "Esse token não existe mais.")
	message.SetString(lang, "error.TOKEN_NOT_MOVABLE", "Você não pode mover esse token.")
	message.SetString(lang, "error.SHAPE_NOT_FOUND", "Essa forma não existe mais.")
	message.SetString(lang, "error.COMBAT_EMPTY_ORDER", "Adicione pelo menos um combatente para iniciar o encontro.")
	message.SetString(lang, "error.COMBAT_INACTIVE", "Nenhum encontro está em andamento.")
	message.SetString(lang, "error.LIBRARY_EMPTY_NAME", "Dê um nome ao mapa salvo.")
	message.SetString(lang, "error.LIBRARY_ENTRY_MISSING", "Esse mapa salvo não existe mais.")
	message.SetString(lang, "error.MAP_PAUSED", "A mesa está pausada.")
	message.SetString(lang, "error.GRANT_FORBIDDEN", "Somente o mestre pode fazer isso.")
	message.SetString(lang, "error.UNKNOWN", "Algo deu errado. Tente novamente.")
}

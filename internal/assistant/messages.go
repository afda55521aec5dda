package assistant

import "fmt"

// Spoken phrases. The assistant speaks Spanish.
const (
	defaultName = "amigo"

	msgGreeting     = "Hola %s, ¿en qué te puedo ayudar hoy?"
	msgListeningAck = "Escuchando..."
	msgInactive     = "Parece que no estás ahí. Me desactivaré por ahora."
	msgHelp         = "No te entendí bien. Prueba con: 'Crear nota [mensaje]', 'Borrar última nota' o 'Leer notas de hoy'."
	msgFailed       = "Lo siento, no pude completar esa acción."

	msgCreated      = "Anotado: %s"
	msgCreatePrompt = "¿Qué quieres que diga la nota?"

	msgReplaced         = "He actualizado la última nota."
	msgNothingToReplace = "No hay notas para modificar."
	msgAppended         = "Agregado a la última nota."
	msgNothingToAppend  = "No tienes notas para agregar información."

	msgDeletedLast           = "Entendido, última nota eliminada."
	msgNothingToDelete       = "No hay nada que borrar."
	msgDeletedOneByDate      = "He borrado el recuerdo de esa fecha."
	msgDeletedByDate         = "He borrado los %d recuerdos de esa fecha."
	msgNothingToDeleteOnDate = "No encontré notas de ese día para borrar."

	msgSearching     = "Buscando recuerdos del %s..."
	msgNothingToRead = "No encontré notas de ese día para leer."
	msgFoundOne      = "Encontré 1 recuerdo. Reproduciendo..."
	msgFound         = "Encontré %d recuerdos. Reproduciendo..."
	msgMemoryIntro   = "Recuerdo %d."
	msgEmptyMemory   = "Recuerdo vacío"
	msgEndOfMemories = "Fin de los recuerdos."

	// NoticeUnavailable is shown, not spoken, when recognition cannot start
	NoticeUnavailable = "El reconocimiento de voz no está disponible."
)

func greeting(firstName string) string {
	if firstName == "" {
		firstName = defaultName
	}
	return fmt.Sprintf(msgGreeting, firstName)
}

func deletedByDate(n int) string {
	if n == 1 {
		return msgDeletedOneByDate
	}
	return fmt.Sprintf(msgDeletedByDate, n)
}

func foundMemories(n int) string {
	if n == 1 {
		return msgFoundOne
	}
	return fmt.Sprintf(msgFound, n)
}

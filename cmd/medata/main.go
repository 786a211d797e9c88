package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"medata/internal/api"
	"medata/internal/bootstrap"
	"medata/internal/domain"
	"medata/internal/export"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	services, err := bootstrap.Build(newConsoleEvents())
	if err != nil {
		fmt.Println("Erro:", err)
		os.Exit(1)
	}
	services.Session.OnExpire(func() {
		fmt.Println("Sessão expirada. Faça login novamente.")
	})

	if err := run(services, os.Args[1], os.Args[2:]); err != nil {
		fmt.Println("Erro:", err)
		os.Exit(1)
	}
}

func run(services bootstrap.Services, command string, args []string) error {
	ctx := context.Background()

	switch command {
	case "login":
		return login(ctx, services, args)
	case "cadastrar":
		return register(ctx, services, args)
	case "gravar":
		return record(ctx, services, args)
	case "historico":
		return history(ctx, services, args)
	case "detalhes":
		return details(ctx, services, args)
	case "pdf":
		return exportPDF(ctx, services, args)
	case "copiar":
		return copyRecord(ctx, services, args)
	case "compartilhar":
		return share(ctx, services, args)
	case "excluir":
		return deleteRecord(ctx, services, args)
	case "sair":
		services.Session.SignOut()
		fmt.Println("Sessão encerrada.")
		return nil
	case "status":
		return status(services)
	default:
		usage()
		return fmt.Errorf("comando desconhecido: %s", command)
	}
}

func usage() {
	fmt.Println(`Uso: medata <comando> [opções]

Comandos:
  login         autentica o médico (-email, -senha)
  cadastrar     cria uma conta de médico
  gravar        grava, transcreve e envia uma consulta
  historico     lista os registros do médico (-filtro)
  detalhes      mostra um registro completo (-id)
  pdf           exporta um registro em PDF (-id, -saida)
  copiar        copia a transcrição para a área de transferência (-id)
  compartilhar  compartilha a transcrição ou o PDF (-id, -pdf)
  excluir       remove um registro (-id)
  sair          encerra a sessão local
  status        mostra a sessão e o pipeline`)
}

func login(ctx context.Context, services bootstrap.Services, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "e-mail do médico")
	senha := fs.String("senha", "", "senha")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *senha == "" {
		return errors.New("-email e -senha são obrigatórios")
	}

	doctorID, err := services.API.Login(ctx, *email, *senha)
	if err != nil {
		if errors.Is(err, api.ErrInvalidCredentials) {
			return errors.New("e-mail ou senha inválidos")
		}
		return err
	}
	if err := services.Session.SignIn(doctorID); err != nil {
		return err
	}
	fmt.Println("Login realizado. A sessão expira em 10 minutos.")
	return nil
}

func register(ctx context.Context, services bootstrap.Services, args []string) error {
	fs := flag.NewFlagSet("cadastrar", flag.ExitOnError)
	nome := fs.String("nome", "", "nome")
	sobrenome := fs.String("sobrenome", "", "sobrenome")
	nascimento := fs.String("nascimento", "", "data de nascimento (AAAA-MM-DD)")
	crm := fs.String("crm", "", "CRM")
	email := fs.String("email", "", "e-mail")
	senha := fs.String("senha", "", "senha")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *nome == "" || *email == "" || *senha == "" {
		return errors.New("-nome, -email e -senha são obrigatórios")
	}

	err := services.API.Register(ctx, api.RegisterRequest{
		Nome:           *nome,
		Sobrenome:      *sobrenome,
		DataNascimento: *nascimento,
		Crm:            *crm,
		Email:          *email,
		Senha:          *senha,
	})
	if err != nil {
		return err
	}
	fmt.Println("Cadastro realizado. Use 'medata login' para entrar.")
	return nil
}

func record(ctx context.Context, services bootstrap.Services, args []string) error {
	fs := flag.NewFlagSet("gravar", flag.ExitOnError)
	paciente := fs.String("paciente", "", "nome do paciente")
	cpf := fs.String("cpf", "", "CPF do paciente (11 dígitos)")
	consent := fs.Bool("declaro", false, "declaro que revisei as informações do paciente")
	localizacao := fs.Bool("localizacao", false, "anexar a localização atual")
	if err := fs.Parse(args); err != nil {
		return err
	}

	doctorID, err := requireSession(services)
	if err != nil {
		return err
	}

	controller := services.Controller
	if *paciente != "" || *cpf != "" {
		controller.SetPatient(*paciente, *cpf)
	}
	if *consent {
		controller.SetConsent(true)
	}

	if err := controller.Start(ctx); err != nil {
		return err
	}
	fmt.Println("Gravando... pressione Enter para parar.")
	waitForEnter()

	draft, err := controller.Stop(ctx)
	if err != nil {
		return err
	}
	fmt.Println("Transcrição:")
	fmt.Println("  " + draft.TranscriptionText)

	if *localizacao {
		if controller.CaptureLocation(ctx) {
			draft = controller.Draft()
			if draft.Geolocation != nil && draft.Geolocation.Address != "" {
				fmt.Println("Local:", draft.Geolocation.Address)
			}
		}
	}

	audio, closeAudio, err := openAudio(draft)
	if err != nil {
		return err
	}
	if closeAudio != nil {
		defer closeAudio()
	}

	record, err := services.API.Submit(ctx, doctorID, draft, audio)
	if err != nil {
		return err
	}
	controller.ClearDraft()
	fmt.Println("Registro enviado:", record.ID)
	return nil
}

func openAudio(draft domain.DraftRecord) (*api.AudioFile, func(), error) {
	if draft.AudioPath == "" {
		return nil, nil, nil
	}
	file, err := os.Open(draft.AudioPath)
	if err != nil {
		return nil, nil, fmt.Errorf("abrindo áudio gravado: %w", err)
	}
	name := filepath.Base(draft.AudioPath)
	audio := &api.AudioFile{
		Name:        name,
		ContentType: api.AudioContentType(name, ""),
		Content:     file,
	}
	return audio, func() { _ = file.Close() }, nil
}

func history(ctx context.Context, services bootstrap.Services, args []string) error {
	fs := flag.NewFlagSet("historico", flag.ExitOnError)
	filtro := fs.String("filtro", "", "filtra por nome ou CPF do paciente")
	if err := fs.Parse(args); err != nil {
		return err
	}

	doctorID, err := requireSession(services)
	if err != nil {
		return err
	}
	records, err := services.API.History(ctx, doctorID, *filtro)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("Nenhum registro encontrado.")
		return nil
	}
	for _, record := range records {
		line := record.ID + "  " + record.PatientName
		if record.RecordedAt != "" {
			line += "  " + record.RecordedAt
		}
		fmt.Println(line)
	}
	return nil
}

func details(ctx context.Context, services bootstrap.Services, args []string) error {
	fs := flag.NewFlagSet("detalhes", flag.ExitOnError)
	id := fs.String("id", "", "identificador do registro")
	if err := fs.Parse(args); err != nil {
		return err
	}

	record, err := findRecord(ctx, services, *id)
	if err != nil {
		return err
	}

	fmt.Println("Paciente:", record.PatientName)
	if record.PatientCPF != "" {
		fmt.Println("CPF:", domain.FormatCPF(record.PatientCPF))
	}
	if record.RecordedAt != "" {
		fmt.Println("Data:", record.RecordedAt)
	}
	if record.Address != "" {
		fmt.Println("Local:", record.Address)
	} else if record.Latitude != nil && record.Longitude != nil {
		fmt.Printf("Local: %.5f, %.5f\n", *record.Latitude, *record.Longitude)
	}
	fmt.Println("Transcrição:")
	fmt.Println("  " + record.Transcription)

	if record.AudioPath != "" {
		audioURL, err := services.API.ResolveAudioURL(ctx, record.AudioPath)
		if err != nil {
			fmt.Println("Áudio: indisponível")
		} else {
			fmt.Println("Áudio:", audioURL)
		}
	}
	return nil
}

func exportPDF(ctx context.Context, services bootstrap.Services, args []string) error {
	fs := flag.NewFlagSet("pdf", flag.ExitOnError)
	id := fs.String("id", "", "identificador do registro")
	saida := fs.String("saida", "", "arquivo de saída (padrão: registro-<id>.pdf)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	record, err := findRecord(ctx, services, *id)
	if err != nil {
		return err
	}
	path := *saida
	if path == "" {
		path = "registro-" + record.ID + ".pdf"
	}
	if err := export.WritePDF(record, path); err != nil {
		return err
	}
	fmt.Println("PDF gerado:", path)
	return nil
}

func copyRecord(ctx context.Context, services bootstrap.Services, args []string) error {
	fs := flag.NewFlagSet("copiar", flag.ExitOnError)
	id := fs.String("id", "", "identificador do registro")
	if err := fs.Parse(args); err != nil {
		return err
	}

	record, err := findRecord(ctx, services, *id)
	if err != nil {
		return err
	}
	if strings.TrimSpace(record.Transcription) == "" {
		return export.ErrNothingToCopy
	}
	if err := services.Clipboard.SetText(ctx, record.Transcription); err != nil {
		return err
	}
	fmt.Println("Transcrição copiada.")
	return nil
}

func share(ctx context.Context, services bootstrap.Services, args []string) error {
	fs := flag.NewFlagSet("compartilhar", flag.ExitOnError)
	id := fs.String("id", "", "identificador do registro")
	asPDF := fs.Bool("pdf", false, "compartilhar o PDF em vez do texto")
	if err := fs.Parse(args); err != nil {
		return err
	}

	record, err := findRecord(ctx, services, *id)
	if err != nil {
		return err
	}

	if *asPDF {
		path := filepath.Join(services.Config.Storage.DataDir, "registro-"+record.ID+".pdf")
		if err := export.WritePDF(record, path); err != nil {
			return err
		}
		return services.Share.ShareFile(ctx, path)
	}
	return services.Share.ShareText(ctx, record.Transcription)
}

func deleteRecord(ctx context.Context, services bootstrap.Services, args []string) error {
	fs := flag.NewFlagSet("excluir", flag.ExitOnError)
	id := fs.String("id", "", "identificador do registro")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("-id é obrigatório")
	}
	if _, err := requireSession(services); err != nil {
		return err
	}
	if err := services.API.Delete(ctx, *id); err != nil {
		return err
	}
	fmt.Println("Registro excluído.")
	return nil
}

func status(services bootstrap.Services) error {
	if services.Session.Valid() {
		fmt.Println("Sessão: ativa (médico", services.Session.DoctorID()+")")
	} else {
		fmt.Println("Sessão: não autenticado")
	}
	pipeline := services.Controller.Status()
	fmt.Println("Pipeline:", string(pipeline.State))
	if pipeline.Message != "" {
		fmt.Println("Último aviso:", pipeline.Message)
	}
	draft := services.Controller.Draft()
	if draft.PatientName != "" {
		fmt.Println("Rascunho: paciente", draft.PatientName)
	}
	return nil
}

func findRecord(ctx context.Context, services bootstrap.Services, id string) (domain.CanonicalRecord, error) {
	if id == "" {
		return domain.CanonicalRecord{}, errors.New("-id é obrigatório")
	}
	doctorID, err := requireSession(services)
	if err != nil {
		return domain.CanonicalRecord{}, err
	}
	records, err := services.API.History(ctx, doctorID, "")
	if err != nil {
		return domain.CanonicalRecord{}, err
	}
	for _, record := range records {
		if record.ID == id {
			return record, nil
		}
	}
	return domain.CanonicalRecord{}, fmt.Errorf("registro %s não encontrado", id)
}

func requireSession(services bootstrap.Services) (string, error) {
	if !services.Session.Valid() {
		return "", errors.New("sessão expirada ou inexistente, faça login novamente")
	}
	return services.Session.DoctorID(), nil
}

func waitForEnter() {
	reader := bufio.NewReader(os.Stdin)
	_, _ = reader.ReadString('\n')
}

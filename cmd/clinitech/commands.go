package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clinitech/frontoffice/internal/domain/billing"
	"github.com/clinitech/frontoffice/internal/domain/notification"
	"github.com/clinitech/frontoffice/internal/domain/session"
)

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in as a doctor and persist the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				password = readLine(cmd.InOrStdin(), cmd.OutOrStdout(), "Password: ")
			}

			ctx := cmd.Context()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.session.Login(ctx, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", snap.User.FullName, snap.User.Email)
			return nil
		},
	}
	cmd.Flags().String("email", "", "Doctor email")
	cmd.Flags().String("password", "", "Password (prompted when omitted)")
	return cmd
}

func signupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register a new doctor account",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req session.SignupRequest
			req.FullName, _ = cmd.Flags().GetString("name")
			req.Email, _ = cmd.Flags().GetString("email")
			req.PhoneNumber, _ = cmd.Flags().GetString("phone")
			req.UserRole, _ = cmd.Flags().GetString("role")
			req.Password, _ = cmd.Flags().GetString("password")
			if req.Password == "" {
				req.Password = readLine(cmd.InOrStdin(), cmd.OutOrStdout(), "Password: ")
			}

			ctx := cmd.Context()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.session.Signup(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account created, signed in as %s\n", snap.User.FullName)
			return nil
		},
	}
	cmd.Flags().String("name", "", "Full name")
	cmd.Flags().String("email", "", "Email")
	cmd.Flags().String("phone", "", "Phone number")
	cmd.Flags().String("role", "doctor", "User role")
	cmd.Flags().String("password", "", "Password (prompted when omitted)")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the persisted session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			a.session.Logout(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in doctor",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			snap := a.session.Snapshot()
			if !snap.Authenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
				return nil
			}
			u := snap.User
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> role=%s id=%s\n", u.FullName, u.Email, u.UserRole, u.ID)
			return nil
		},
	}
}

func patientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patient",
		Short: "Look up patients",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <patient-id>",
		Short: "Show a patient's details and health metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if _, err := a.requireSession(); err != nil {
				return err
			}

			p, err := a.patients.Detail(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  age=%d gender=%s blood=%s contact=%s\n", p.FullName, p.Age, p.Gender, p.BloodType, p.ContactNumber)

			metrics, err := a.patients.ListMetrics(ctx, p.ID)
			if err != nil {
				fmt.Fprintf(out, "health metrics unavailable: %v\n", err)
				return nil
			}
			fmt.Fprintf(out, "%-12s %-8s %-8s %-8s\n", "DATE", "HBA1C", "LDL-C", "EGFR")
			for _, m := range metrics {
				fmt.Fprintf(out, "%-12s %-8.1f %-8.1f %-8.1f\n", m.Date.Format("2006-01-02"), m.HbA1c, m.LDLC, m.EGFR)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the signed-in doctor's patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			u, err := a.requireSession()
			if err != nil {
				return err
			}

			items, err := a.patients.ListForDoctor(ctx, u.ID)
			if err != nil {
				return err
			}
			for _, p := range items {
				fmt.Fprintf(cmd.OutOrStdout(), "%-26s %-30s %d\n", p.ID, p.FullName, p.Age)
			}
			return nil
		},
	})
	return cmd
}

func billCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bill",
		Short: "Inspect, create and check out patient bills",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <patient-id>",
		Short: "Show the patient's bill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			view, err := a.billing.Load(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatView(view))
			return nil
		},
	})

	createCmd := &cobra.Command{
		Use:   "create <patient-id>",
		Short: "Add services and treatments to the patient's bill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, _ := cmd.Flags().GetStringSlice("service")
			treatments, _ := cmd.Flags().GetStringSlice("treatment")

			ctx := cmd.Context()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.billing.Load(ctx, args[0]); err != nil {
				return err
			}
			b, err := a.billing.CreateBill(ctx, billing.Selection{HospitalServices: services, Treatments: treatments})
			if b != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Bill %s created, total Rs.%s\n", b.ID, billing.FormatAmount(b.FinalAmount))
			}
			return err
		},
	}
	createCmd.Flags().StringSlice("service", nil, "Hospital service name (repeatable)")
	createCmd.Flags().StringSlice("treatment", nil, "Treatment name (repeatable)")
	cmd.AddCommand(createCmd)

	checkoutCmd := &cobra.Command{
		Use:   "checkout <patient-id>",
		Short: "Record insurance coverage and close the bill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coverage, _ := cmd.Flags().GetString("coverage")

			ctx := cmd.Context()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			view, err := checkout(ctx, a.billing, args[0], coverage)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatView(view))
			return nil
		},
	}
	checkoutCmd.Flags().String("coverage", "", "Insurance coverage amount")
	cmd.AddCommand(checkoutCmd)

	return cmd
}

// checkout drives the desk through a whole checkout for one patient.
func checkout(ctx context.Context, mgr *billing.Manager, patientID, coverage string) (billing.View, error) {
	if _, err := mgr.Load(ctx, patientID); err != nil {
		return billing.View{}, err
	}
	if _, err := mgr.BeginCheckout(); err != nil {
		return billing.View{}, err
	}
	if _, err := mgr.InputCoverage(coverage); err != nil {
		_, _ = mgr.CancelCheckout()
		return billing.View{}, err
	}
	return mgr.SubmitCheckout(ctx)
}

func catalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List hospital services and treatments with prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			services, treatments, err := a.catalog.Entries(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "HOSPITAL SERVICES")
			for _, s := range services {
				fmt.Fprintf(out, "  %-30s Rs.%s\n", s.Name, billing.FormatAmount(s.Price))
			}
			fmt.Fprintln(out, "TREATMENTS")
			for _, t := range treatments {
				fmt.Fprintf(out, "  %-30s Rs.%s\n", t.Name, billing.FormatAmount(t.Price))
			}
			return nil
		},
	}
}

func smsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sms",
		Short: "Bill notifications and direct SMS",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list <patient-id>",
		Short: "List notification records for a patient, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.notifications.ListNotifications(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatNotifications(items))
			return nil
		},
	})

	sendCmd := &cobra.Command{
		Use:   "send",
		Short: "Send an SMS through the configured gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			to, _ := cmd.Flags().GetString("to")
			message, _ := cmd.Flags().GetString("message")

			ctx := cmd.Context()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.notifications.Deliver(ctx, to, message); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "SMS sent to %s\n", to)
			return nil
		},
	}
	sendCmd.Flags().String("to", "", "Recipient phone number")
	sendCmd.Flags().String("message", "", "Message body")
	cmd.AddCommand(sendCmd)

	return cmd
}

func formatView(v billing.View) string {
	var b strings.Builder
	name := v.PatientID
	if v.Patient != nil && v.Patient.FullName != "" {
		name = v.Patient.FullName
	}
	fmt.Fprintf(&b, "Patient: %s\n", name)
	if !v.HasBill {
		b.WriteString("No bill yet.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Bill:     %s\n", v.Bill.ID)
	fmt.Fprintf(&b, "Total:    Rs.%s\n", billing.FormatAmount(v.FinalAmount))
	fmt.Fprintf(&b, "Coverage: Rs.%s\n", billing.FormatAmount(v.InsuranceCoverage))
	fmt.Fprintf(&b, "Due:      Rs.%s\n", billing.FormatAmount(v.AmountDue))
	status := "open"
	if v.CheckedOut {
		status = "checked out"
	}
	fmt.Fprintf(&b, "Status:   %s\n", status)
	return b.String()
}

func formatNotifications(items []*notification.Record) string {
	if len(items) == 0 {
		return "No notifications.\n"
	}
	var b strings.Builder
	for _, n := range items {
		fmt.Fprintf(&b, "%s  %s\n", n.CreatedAt.Format("2006-01-02 15:04"), n.Message)
	}
	return b.String()
}

func readLine(in io.Reader, out io.Writer, prompt string) string {
	fmt.Fprint(out, prompt)
	if in == nil {
		in = os.Stdin
	}
	line, _ := bufio.NewReader(in).ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}

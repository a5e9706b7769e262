// Package toast provides feedback notifications for the dashboard.
//
// Helpers emit a toast event to a Sink. The application's Center is the
// usual sink: it keeps the most recent banners and renders them as a
// strip above the page.
//
//	func (p *ModelsPage) remove(id string) {
//	    if _, err := p.api.Delete(ctx, "/models/"+id); err != nil {
//	        toast.Error(p.toasts, "Failed to delete model")
//	        return
//	    }
//	    toast.Success(p.toasts, "Model deleted")
//	}
//
// With title:
//
//	toast.WithTitle(sink, toast.TypeSuccess, "Settings", "Your changes have been saved.")
package toast
